package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/gaugeviz/internal/dom"
	"github.com/seenimoa/gaugeviz/internal/gauge"
	"github.com/seenimoa/gaugeviz/internal/result"
	"github.com/seenimoa/gaugeviz/internal/source"
	"github.com/seenimoa/gaugeviz/pkg/models"
	"github.com/seenimoa/gaugeviz/web"
)

// HostClass is the class of the element each served gauge is mounted on.
const HostClass = "connect-gauge-host"

// EventRemoved is broadcast when a gauge is deleted.
const EventRemoved = "gauge.removed"

var (
	errDuplicate = errors.New("gauge already exists")
	validID      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)
)

// instance is one served gauge, mounted on a detached host element.
type instance struct {
	id string
	g  *gauge.Gauge
}

// GaugeView is the JSON form of a served gauge.
type GaugeView struct {
	ID       string         `json:"id"`
	Options  gauge.Options  `json:"options"`
	Snapshot gauge.Snapshot `json:"snapshot"`
}

func (i *instance) view() GaugeView {
	return GaugeView{ID: i.id, Options: i.g.Options(), Snapshot: i.g.Snapshot()}
}

// outerHTML wraps the gauge markup in its host element.
func (i *instance) outerHTML() (string, error) {
	inner, err := i.g.HTML()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`<div id="%s" class="%s">%s</div>`, i.id, HostClass, inner), nil
}

// registry holds the served gauges in creation order.
type registry struct {
	mu    sync.RWMutex
	items map[string]*instance
	order []string
}

func newRegistry() *registry {
	return &registry{items: make(map[string]*instance)}
}

func (r *registry) add(inst *instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[inst.id]; ok {
		return errDuplicate
	}
	r.items[inst.id] = inst
	r.order = append(r.order, inst.id)
	return nil
}

func (r *registry) get(id string) (*instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.items[id]
	return inst, ok
}

func (r *registry) remove(id string) (*instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[id]
	if !ok {
		return nil, false
	}
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return inst, true
}

func (r *registry) list() []*instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// ============================================================
// Request types
// ============================================================

// CreateGaugeRequest is the body of POST /api/v1/gauges.
type CreateGaugeRequest struct {
	ID      string                      `json:"id"`
	Options models.VisualizationOptions `json:"options"`
}

// DeliverRequest is the body of POST /api/v1/gauges/{id}/results. Exactly
// one of Results and Source is set; FullReload defaults to true.
type DeliverRequest struct {
	Results    *models.QueryResults `json:"results,omitempty"`
	Source     *source.Spec         `json:"source,omitempty"`
	FullReload *bool                `json:"fullReload,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleListGauges(w http.ResponseWriter, r *http.Request) {
	insts := s.registry.list()
	views := make([]GaugeView, 0, len(insts))
	for _, inst := range insts {
		views = append(views, inst.view())
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: views})
}

func (s *Server) handleCreateGauge(w http.ResponseWriter, r *http.Request) {
	var req CreateGaugeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !validID.MatchString(req.ID) {
		writeError(w, http.StatusBadRequest, "id must start with a letter and contain only letters, digits, '-' or '_'")
		return
	}

	mount := dom.CreateElement("div", HostClass)
	dom.SetAttr(mount, "id", req.ID)

	cfg := s.gaugeConfig()
	id := req.ID
	cfg.OnChange = func(g *gauge.Gauge, ev gauge.Event) {
		out, err := g.HTML()
		if err != nil {
			s.logger.Warn("serialize gauge", "id", id, "error", err)
			return
		}
		s.hub.Broadcast(WSMessage{Type: string(ev), Data: GaugeEvent{ID: id, HTML: out}})
	}

	g, err := gauge.New(nil, mount, req.Options, cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	inst := &instance{id: req.ID, g: g}
	if err := s.registry.add(inst); err != nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s: %q", err, req.ID))
		return
	}

	s.logger.Info("gauge created", "id", req.ID)
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: inst.view()})
}

// lookup resolves the {id} URL parameter, writing a 404 when unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*instance, bool) {
	id := chi.URLParam(r, "id")
	inst, ok := s.registry.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "gauge not found: "+id)
	}
	return inst, ok
}

func (s *Server) handleGetGauge(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: inst.view()})
}

func (s *Server) handleRenderGauge(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := inst.g.Render(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: inst.view()})
}

func (s *Server) handleClearGauge(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	inst.g.Clear()
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: inst.view()})
}

func (s *Server) handleDeleteGauge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, ok := s.registry.remove(id)
	if !ok {
		writeError(w, http.StatusNotFound, "gauge not found: "+id)
		return
	}
	inst.g.Close()
	s.hub.Broadcast(WSMessage{Type: EventRemoved, Data: GaugeEvent{ID: id}})

	s.logger.Info("gauge deleted", "id", id)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"id": id}})
}

// handleDeliverResults hands results to a gauge. By default the delivery is
// applied in the background and 202 is returned; with ?wait=true the call
// returns once the delivery was applied or dropped.
func (s *Server) handleDeliverResults(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req DeliverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if (req.Results == nil) == (req.Source == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of results and source is required")
		return
	}
	fullReload := true
	if req.FullReload != nil {
		fullReload = *req.FullReload
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	ctx := s.ctx
	if wait {
		ctx = r.Context()
	}

	var p *result.Promise
	if req.Results != nil {
		if req.Results.Results == nil {
			req.Results.Results = []models.Row{}
		}
		p = result.Resolved(req.Results)
	} else {
		p = s.loader.Promise(ctx, *req.Source)
	}

	d := inst.g.DisplayData(ctx, p, fullReload)
	if !wait {
		writeJSON(w, http.StatusAccepted, APIResponse{Success: true, Data: map[string]any{"id": inst.id, "accepted": true}})
		return
	}

	switch err := d.Wait(r.Context()); {
	case err == nil:
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: inst.view()})
	case errors.Is(err, result.ErrStale), errors.Is(err, result.ErrCanceled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func (s *Server) handleGaugeHTML(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	out, err := inst.g.HTML()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// ============================================================
// Live pages
// ============================================================

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, "gaugeviz", s.registry.list())
}

func (s *Server) handleGaugePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, ok := s.registry.get(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writePage(w, id, []*instance{inst})
}

func (s *Server) writePage(w http.ResponseWriter, title string, insts []*instance) {
	var body strings.Builder
	for _, inst := range insts {
		out, err := inst.outerHTML()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		body.WriteString(out)
	}

	var buf bytes.Buffer
	if err := web.RenderPage(&buf, web.Page{Title: title, Body: template.HTML(body.String()), Live: true}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
