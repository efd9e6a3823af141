package result

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/seenimoa/gaugeviz/pkg/models"
)

var (
	// ErrStale marks a delivery superseded by a newer one for the same owner.
	ErrStale = errors.New("result: superseded by a newer delivery")
	// ErrCanceled marks a delivery dropped because its owner was cleared.
	ErrCanceled = errors.New("result: delivery canceled")
)

// LoadFunc applies resolved results to an owner.
type LoadFunc func(results *models.QueryResults, fullReload bool)

// Owner is the visualization a delivery belongs to. Its hooks run while the
// handler holds the owner's delivery slot, so they must not call back into
// the handler for the same owner.
type Owner interface {
	ShowLoading()
	HideLoading()
	DisplayError(err error)
}

// slot serializes the deliveries of one owner. canceled is the sequence
// number stamped by the last Cancel.
type slot struct {
	mu       sync.Mutex
	seq      uint64
	canceled uint64
}

// Handler arbitrates result deliveries. A delivery is applied only if no
// newer delivery was requested for the same owner and the owner was not
// canceled in between, so a slow, older result can never overwrite a newer
// one.
type Handler struct {
	mu     sync.Mutex
	slots  map[Owner]*slot
	logger *slog.Logger
}

// NewHandler creates a handler. A nil logger uses slog.Default().
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		slots:  make(map[Owner]*slot),
		logger: logger,
	}
}

func (h *Handler) slot(owner Owner) *slot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[owner]
	if !ok {
		s = &slot{}
		h.slots[owner] = s
	}
	return s
}

// Delivery tracks one HandleResult call.
type Delivery struct {
	seq  uint64
	done chan struct{}
	err  error
}

// Done is closed once the delivery was applied or dropped.
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Wait blocks until the delivery settles. It returns nil when the results
// were applied, ErrStale or ErrCanceled when they were dropped, or the
// promise's own error.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleResult awaits p in the background and hands its results to load,
// unless a newer delivery for owner was requested first. The owner's loader
// is shown until the latest delivery settles; a rejected promise is reported
// through owner.DisplayError.
func (h *Handler) HandleResult(ctx context.Context, p *Promise, owner Owner, load LoadFunc, fullReload bool) *Delivery {
	s := h.slot(owner)

	s.mu.Lock()
	s.seq++
	d := &Delivery{seq: s.seq, done: make(chan struct{})}
	owner.ShowLoading()
	s.mu.Unlock()

	go func() {
		defer close(d.done)
		res, err := p.Await(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()

		if d.seq != s.seq {
			d.err = ErrStale
			if s.canceled == s.seq {
				d.err = ErrCanceled
			}
			h.logger.Debug("result: dropped delivery", "seq", d.seq, "latest", s.seq, "reason", d.err)
			return
		}

		owner.HideLoading()
		if err != nil {
			d.err = err
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				h.logger.Debug("result: delivery abandoned", "seq", d.seq, "error", err)
				return
			}
			h.logger.Warn("result: delivery rejected", "seq", d.seq, "error", err)
			owner.DisplayError(err)
			return
		}
		load(res, fullReload)
	}()

	return d
}

// Cancel drops every pending delivery for owner. A delivery that is being
// applied concurrently finishes before Cancel returns.
func (h *Handler) Cancel(owner Owner) {
	s := h.slot(owner)
	s.mu.Lock()
	s.seq++
	s.canceled = s.seq
	s.mu.Unlock()
}

// Forget cancels pending deliveries and releases the owner's slot.
func (h *Handler) Forget(owner Owner) {
	h.Cancel(owner)
	h.mu.Lock()
	delete(h.slots, owner)
	h.mu.Unlock()
}
