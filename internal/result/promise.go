// Package result delivers asynchronous query results to visualizations,
// applying only the most recently requested delivery per owner.
package result

import (
	"context"
	"errors"
	"sync"

	"github.com/seenimoa/gaugeviz/pkg/models"
)

// ErrNilResults is the rejection reason for a promise resolved with nil.
var ErrNilResults = errors.New("result: resolved with nil results")

// Promise is a pending-or-resolved query result. It settles once; later
// Resolve or Reject calls are ignored.
type Promise struct {
	once    sync.Once
	done    chan struct{}
	results *models.QueryResults
	err     error
}

// NewPromise returns a pending promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolved returns a promise already settled with results.
func Resolved(results *models.QueryResults) *Promise {
	p := NewPromise()
	p.Resolve(results)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected(err error) *Promise {
	p := NewPromise()
	p.Reject(err)
	return p
}

// Go runs fn in a goroutine and settles the promise with its outcome.
func Go(ctx context.Context, fn func(ctx context.Context) (*models.QueryResults, error)) *Promise {
	p := NewPromise()
	go func() {
		res, err := fn(ctx)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(res)
	}()
	return p
}

// Resolve settles the promise with results. Nil results reject with
// ErrNilResults.
func (p *Promise) Resolve(results *models.QueryResults) {
	if results == nil {
		p.Reject(ErrNilResults)
		return
	}
	p.once.Do(func() {
		p.results = results
		close(p.done)
	})
}

// Reject settles the promise with err.
func (p *Promise) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (*models.QueryResults, error) {
	select {
	case <-p.done:
		return p.results, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
