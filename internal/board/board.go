// Package board renders dashboards: a YAML file listing gauge panels, each
// fed from its own result file.
package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/gaugeviz/internal/chart"
	"github.com/seenimoa/gaugeviz/internal/dom"
	"github.com/seenimoa/gaugeviz/internal/gauge"
	"github.com/seenimoa/gaugeviz/internal/result"
	"github.com/seenimoa/gaugeviz/internal/source"
	"github.com/seenimoa/gaugeviz/pkg/models"
	"github.com/seenimoa/gaugeviz/web"
)

// Class names of the board markup.
const (
	RootClass  = "connect-board"
	PanelClass = "connect-board-panel"
)

// Dashboard is the decoded dashboard file.
type Dashboard struct {
	Title  string  `yaml:"title"`
	Panels []Panel `yaml:"panels"`
}

// Panel is one gauge on a dashboard.
type Panel struct {
	ID      string                      `yaml:"id"`
	Options models.VisualizationOptions `yaml:"options"`
	Source  source.Spec                 `yaml:"source"`
}

// Parse decodes a dashboard. Relative source paths are resolved against
// dir.
func Parse(data []byte, dir string) (*Dashboard, error) {
	var d Dashboard
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("board: decode dashboard: %w", err)
	}

	seen := make(map[string]bool, len(d.Panels))
	for i := range d.Panels {
		p := &d.Panels[i]
		if p.ID == "" {
			p.ID = fmt.Sprintf("panel-%d", i+1)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("board: duplicate panel id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Source.Path == "" {
			return nil, fmt.Errorf("board: panel %q: missing source path", p.ID)
		}
		if !filepath.IsAbs(p.Source.Path) {
			p.Source.Path = filepath.Join(dir, p.Source.Path)
		}
	}
	return &d, nil
}

// LoadFile reads and parses a dashboard file.
func LoadFile(path string) (*Dashboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Config wires the gauges of a board.
type Config struct {
	Engine      chart.Engine
	Palette     gauge.Swatcher
	Loader      *source.Loader
	Logger      *slog.Logger
	Concurrency int // panels loading at once; <1 means 4
	Gauge       gauge.Config
}

// Board is a built dashboard.
type Board struct {
	Title  string
	root   *html.Node
	gauges map[string]*gauge.Gauge
	order  []string
	errs   map[string]error
}

// Build creates one gauge per panel under a fresh document and displays
// every panel's results. Panels load concurrently; a panel whose source
// fails shows the error in place and does not fail the board.
func Build(ctx context.Context, d *Dashboard, cfg Config) (*Board, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Loader == nil {
		cfg.Loader = source.NewLoader(0)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	gcfg := cfg.Gauge
	gcfg.Engine = cfg.Engine
	gcfg.Palette = cfg.Palette
	gcfg.Logger = cfg.Logger
	if gcfg.Results == nil {
		gcfg.Results = result.NewHandler(cfg.Logger)
	}

	root := dom.CreateElement("div", RootClass)
	b := &Board{
		Title:  d.Title,
		root:   root,
		gauges: make(map[string]*gauge.Gauge, len(d.Panels)),
		errs:   make(map[string]error),
	}

	for _, p := range d.Panels {
		mount := dom.CreateElement("div", PanelClass)
		dom.SetAttr(mount, "id", p.ID)
		root.AppendChild(mount)

		g, err := gauge.New(nil, mount, p.Options, gcfg)
		if err != nil {
			return nil, fmt.Errorf("board: panel %q: %w", p.ID, err)
		}
		b.gauges[p.ID] = g
		b.order = append(b.order, p.ID)
	}

	errs := make([]error, len(d.Panels))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Concurrency)
	for i, p := range d.Panels {
		i, p := i, p
		g := b.gauges[p.ID]
		eg.Go(func() error {
			err := g.DisplayData(ectx, cfg.Loader.Promise(ectx, p.Source), true).Wait(ectx)
			if ctxErr := ectx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				cfg.Logger.Warn("board: panel failed", "panel", p.ID, "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	for i, err := range errs {
		if err != nil {
			b.errs[d.Panels[i].ID] = err
		}
	}
	return b, nil
}

// Gauge returns the gauge of a panel.
func (b *Board) Gauge(id string) (*gauge.Gauge, bool) {
	g, ok := b.gauges[id]
	return g, ok
}

// IDs returns the panel ids in dashboard order.
func (b *Board) IDs() []string {
	return append([]string(nil), b.order...)
}

// Err joins the errors of failed panels, or returns nil.
func (b *Board) Err() error {
	var errs []error
	for _, id := range b.order {
		if err := b.errs[id]; err != nil {
			errs = append(errs, fmt.Errorf("panel %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// HTML serializes the board markup.
func (b *Board) HTML() (string, error) {
	return dom.OuterHTML(b.root)
}

// Page renders the board as a standalone HTML document.
func (b *Board) Page() ([]byte, error) {
	body, err := b.HTML()
	if err != nil {
		return nil, fmt.Errorf("board: serialize: %w", err)
	}
	var buf bytes.Buffer
	if err := web.RenderPage(&buf, web.Page{Title: b.Title, Body: template.HTML(body)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close clears every gauge.
func (b *Board) Close() {
	for _, g := range b.gauges {
		g.Close()
	}
}
