// Package gauge renders a single-value gauge from asynchronous query
// results. A Gauge owns the subtree it builds under a caller-supplied mount
// element and reconciles every applied result delivery against its live
// chart instead of rebuilding it.
package gauge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/seenimoa/gaugeviz/internal/chart"
	"github.com/seenimoa/gaugeviz/internal/dataset"
	"github.com/seenimoa/gaugeviz/internal/dom"
	"github.com/seenimoa/gaugeviz/internal/palette"
	"github.com/seenimoa/gaugeviz/internal/result"
	"github.com/seenimoa/gaugeviz/pkg/models"
	"github.com/seenimoa/gaugeviz/pkg/utils"
)

// Class names of the scaffold elements.
const (
	ContainerClass = "connect-viz connect-chart connect-chart-gauge"
	TitleClass     = "connect-viz-title"
	ResultClass    = "connect-viz-result"
	ErrorClass     = "connect-viz-error"
)

// Default transition durations.
const (
	DefaultFullReload = 350 * time.Millisecond
	DefaultUpdate     = 300 * time.Millisecond
)

// State is the render state of a Gauge.
type State int

const (
	Unrendered State = iota
	Rendered
)

func (s State) String() string {
	switch s {
	case Unrendered:
		return "unrendered"
	case Rendered:
		return "rendered"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event names passed to Config.OnChange.
type Event string

const (
	EventLoaded  Event = "gauge.loaded"
	EventCleared Event = "gauge.cleared"
	EventFailed  Event = "gauge.error"
)

// Swatcher assigns colors to series labels.
type Swatcher interface {
	GetSwatch(keys []string, override []string) map[string]string
}

// Config wires a Gauge to its collaborators. Zero fields get defaults.
type Config struct {
	Engine  chart.Engine    // default chart.SVGEngine
	Palette Swatcher        // default palette.New(nil)
	Results *result.Handler // shared across gauges; default a private handler
	Logger  *slog.Logger

	FullReload time.Duration // transition of a full reload
	Update     time.Duration // transition of an incremental update
	Width      int
	Height     int

	// OnChange is called after a load, a clear or a displayed error. It runs
	// without the gauge lock held and may read the gauge.
	OnChange func(g *Gauge, ev Event)
}

// view is the per-render part of the gauge, reset by Clear.
type view struct {
	state     State
	container *html.Node
	title     *html.Node
	mount     *html.Node
	chart     chart.Chart
}

// Gauge is the render/reconcile controller of one gauge visualization.
type Gauge struct {
	mu      sync.Mutex
	target  *html.Node
	opts    Options
	cfg     Config
	logger  *slog.Logger
	loader  *dom.Loader
	errEl   *html.Node
	view    view
	current dataset.ChartDataset
	colors  map[string]string
}

// New creates a gauge on target, which is an *html.Node, a
// *goquery.Selection or a selector resolved against doc. Nothing is drawn
// until the first Render or DisplayData.
func New(doc *goquery.Document, target any, raw models.VisualizationOptions, cfg Config) (*Gauge, error) {
	el, err := dom.GetElement(doc, target)
	if err != nil {
		return nil, fmt.Errorf("gauge: resolve target: %w", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = chart.SVGEngine{}
	}
	if cfg.Palette == nil {
		cfg.Palette = palette.New(nil)
	}
	if cfg.Results == nil {
		cfg.Results = result.NewHandler(cfg.Logger)
	}
	if cfg.FullReload <= 0 {
		cfg.FullReload = DefaultFullReload
	}
	if cfg.Update <= 0 {
		cfg.Update = DefaultUpdate
	}

	return &Gauge{
		target: el,
		opts:   Normalize(raw),
		cfg:    cfg,
		logger: cfg.Logger,
		loader: dom.NewLoader(el),
	}, nil
}

// Options returns the normalized options.
func (g *Gauge) Options() Options {
	return g.opts
}

// Target returns the mount element.
func (g *Gauge) Target() *html.Node {
	return g.target
}

// State returns the current render state.
func (g *Gauge) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view.state
}

// Render builds the scaffold and generates the chart unless already
// rendered. On a Generate failure the gauge stays unrendered.
func (g *Gauge) Render() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.render()
}

func (g *Gauge) render() error {
	if g.view.state == Rendered {
		return nil
	}

	// Markup left under the target is dropped; the gauge's own loader and
	// error element stay.
	for c := g.target.FirstChild; c != nil; {
		next := c.NextSibling
		if c != g.errEl && !dom.HasClass(c, dom.LoaderClass) {
			g.target.RemoveChild(c)
		}
		c = next
	}

	container := dom.CreateElement("div", ContainerClass)
	title := dom.CreateElement("span", TitleClass)
	mount := dom.CreateElement("div", ResultClass)
	container.AppendChild(title)
	container.AppendChild(mount)
	g.target.AppendChild(container)

	lo, hi := g.opts.Gauge.Bounds.Range()
	c, err := g.cfg.Engine.Generate(chart.Config{
		BindTo:  mount,
		Type:    chart.TypeGauge,
		Width:   g.cfg.Width,
		Height:  g.cfg.Height,
		Padding: g.opts.Gauge.Padding,
		Gauge: chart.GaugeConfig{
			Min:         lo,
			Max:         hi,
			ShowLabel:   g.opts.Gauge.ShowLabel,
			Units:       g.opts.Gauge.Units,
			Width:       g.opts.Gauge.Width,
			LabelFormat: g.opts.Gauge.LabelFormat,
		},
		TransitionDuration: g.cfg.FullReload,
		Tooltip: func(value any, _ float64, id string, _ int) any {
			return g.formatValueForLabel(id, value)
		},
	})
	if err != nil {
		g.target.RemoveChild(container)
		return fmt.Errorf("gauge: generate chart: %w", err)
	}

	g.view = view{
		state:     Rendered,
		container: container,
		title:     title,
		mount:     mount,
		chart:     c,
	}
	g.showTitle()
	g.logger.Debug("gauge: rendered")
	return nil
}

// DisplayData renders if needed and hands p to the result handler. Only the
// most recent DisplayData of this gauge is ever applied. fullReload picks the
// long transition; it does not change what is drawn.
func (g *Gauge) DisplayData(ctx context.Context, p *result.Promise, fullReload bool) *result.Delivery {
	if err := g.Render(); err != nil {
		g.logger.Error("gauge: render failed", "error", err)
	}
	return g.cfg.Results.HandleResult(ctx, p, g, g.loadData, fullReload)
}

// loadData is the result handler callback.
func (g *Gauge) loadData(res *models.QueryResults, fullReload bool) {
	g.mu.Lock()
	err := g.apply(res, fullReload)
	if err != nil {
		g.showError(err)
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Error("gauge: load failed", "error", err)
		g.notify(EventFailed)
		return
	}
	g.notify(EventLoaded)
}

// apply runs one update cycle against the live chart.
func (g *Gauge) apply(res *models.QueryResults, fullReload bool) error {
	// A delivery that lands after Clear rebuilds the scaffold.
	if err := g.render(); err != nil {
		return err
	}

	ds := g.buildDataset(res)
	keys := ds.Labels()

	var override []string
	if g.opts.Gauge.Color != "" {
		override = []string{g.opts.Gauge.Color}
	}
	colors := g.cfg.Palette.GetSwatch(keys, override)

	upd := chart.UpdateDescriptor{TransitionDuration: g.cfg.Update}
	if fullReload {
		upd.TransitionDuration = g.cfg.FullReload
	}
	if fb, ok := g.opts.Gauge.Bounds.(FieldBounds); ok && res.Len() > 0 {
		row := res.First()
		upd.Min = g.boundFrom(row, fb.MinField)
		upd.Max = g.boundFrom(row, fb.MaxField)
		show := true
		upd.ShowLabel = &show
	}
	g.view.chart.Update(upd)

	g.current = ds
	g.colors = colors
	if err := g.view.chart.Load(chart.LoadRequest{
		JSON:   ds.Data(),
		Keys:   chart.Keys{X: dataset.XKey, Value: keys},
		Colors: colors,
	}); err != nil {
		return fmt.Errorf("gauge: load chart: %w", err)
	}

	g.hideError()
	g.showTitle()
	return nil
}

// buildDataset builds the dataset over a copy of the metadata whose select
// list drops the bound lookup fields.
func (g *Gauge) buildDataset(res *models.QueryResults) dataset.ChartDataset {
	in := &models.QueryResults{}
	if res != nil {
		meta := res.Metadata.Clone()
		meta.Selects = without(meta.Selects, g.opts.ExcludedSelects())
		in = &models.QueryResults{Results: res.Results, Metadata: meta}
	}
	return dataset.NewStandardDataset(in, dataset.Formatters{
		SelectLabel: g.opts.Label,
		GroupValue:  g.FormatGroupValue,
	})
}

// boundFrom reads a bound from row. Missing or non-numeric values leave the
// bound unchanged.
func (g *Gauge) boundFrom(row models.Row, field string) *float64 {
	if field == "" {
		return nil
	}
	v, ok := utils.ToFloat(row[field])
	if !ok {
		g.logger.Debug("gauge: skipping bound", "field", field, "value", row[field])
		return nil
	}
	return &v
}

func (g *Gauge) showTitle() {
	if g.view.title == nil {
		return
	}
	dom.SetText(g.view.title, g.opts.Title)
	dom.SetVisible(g.view.title, g.opts.Title != "")
}

// Clear drops pending deliveries, destroys the chart and empties the
// target. The next DisplayData renders from scratch.
func (g *Gauge) Clear() {
	g.cfg.Results.Cancel(g)

	g.mu.Lock()
	if g.view.chart != nil {
		g.view.chart.Destroy()
	}
	dom.RemoveAllChildren(g.target)
	g.view = view{}
	g.current = nil
	g.colors = nil
	g.errEl = nil
	g.mu.Unlock()

	g.logger.Debug("gauge: cleared")
	g.notify(EventCleared)
}

// Close clears the gauge and releases its slot in the result handler.
func (g *Gauge) Close() {
	g.Clear()
	g.cfg.Results.Forget(g)
}

// FormatValueForLabel formats value with the formatter of the select behind
// label. Without a current dataset or formatter the value is returned as is.
func (g *Gauge) FormatValueForLabel(label string, value any) any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.formatValueForLabel(label, value)
}

func (g *Gauge) formatValueForLabel(label string, value any) any {
	if g.current == nil {
		return value
	}
	if f := g.opts.formatter(g.current.Select(label)); f != nil {
		return f(value)
	}
	return value
}

// FormatGroupValue formats a group value with the formatter configured for
// groupName, or returns it as is.
func (g *Gauge) FormatGroupValue(groupName string, value any) any {
	if f := g.opts.formatter(groupName); f != nil {
		return f(value)
	}
	return value
}

// ShowLoading implements result.Owner.
func (g *Gauge) ShowLoading() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loader.Show()
}

// HideLoading implements result.Owner.
func (g *Gauge) HideLoading() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loader.Hide()
}

// DisplayError implements result.Owner.
func (g *Gauge) DisplayError(err error) {
	g.mu.Lock()
	g.showError(err)
	g.mu.Unlock()
	g.notify(EventFailed)
}

func (g *Gauge) showError(err error) {
	if g.errEl == nil {
		g.errEl = dom.CreateElement("div", ErrorClass)
	}
	dom.SetText(g.errEl, err.Error())
	if g.errEl.Parent == nil {
		g.target.AppendChild(g.errEl)
	}
}

func (g *Gauge) hideError() {
	if g.errEl != nil {
		dom.Detach(g.errEl)
	}
}

func (g *Gauge) notify(ev Event) {
	if g.cfg.OnChange != nil {
		g.cfg.OnChange(g, ev)
	}
}

// HTML serializes the children of the target element.
func (g *Gauge) HTML() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return dom.InnerHTML(g.target)
}

// Snapshot is a point-in-time view of a gauge.
type Snapshot struct {
	State   string            `json:"state"`
	Title   string            `json:"title,omitempty"`
	Mode    string            `json:"mode"`
	Labels  []string          `json:"labels"`
	Colors  map[string]string `json:"colors,omitempty"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
	Chart   *chart.Snapshot   `json:"chart,omitempty"`
}

// Snapshot reports the current state.
func (g *Gauge) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		State:   g.view.state.String(),
		Title:   g.opts.Title,
		Mode:    "static",
		Labels:  []string{},
		Loading: g.loader.Visible(),
	}
	if g.opts.LookupMode() {
		s.Mode = "field"
	}
	if g.current != nil {
		s.Labels = g.current.Labels()
	}
	if len(g.colors) > 0 {
		s.Colors = make(map[string]string, len(g.colors))
		for k, v := range g.colors {
			s.Colors[k] = v
		}
	}
	if g.errEl != nil && g.errEl.Parent != nil {
		s.Error = dom.Text(g.errEl)
	}
	if g.view.chart != nil {
		cs := g.view.chart.Snapshot()
		s.Chart = &cs
	}
	return s
}

func without(list, drop []string) []string {
	out := make([]string, 0, len(list))
outer:
	for _, s := range list {
		for _, d := range drop {
			if s == d {
				continue outer
			}
		}
		out = append(out, s)
	}
	return out
}
