package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/gaugeviz/internal/board"
	"github.com/seenimoa/gaugeviz/internal/chart"
	"github.com/seenimoa/gaugeviz/internal/config"
	"github.com/seenimoa/gaugeviz/internal/dom"
	"github.com/seenimoa/gaugeviz/internal/export"
	"github.com/seenimoa/gaugeviz/internal/gauge"
	"github.com/seenimoa/gaugeviz/internal/palette"
	"github.com/seenimoa/gaugeviz/internal/source"
	"github.com/seenimoa/gaugeviz/pkg/models"
	"github.com/seenimoa/gaugeviz/web"
)

// --- Render Command ---

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one gauge from a results file",
	Long: `Render a gauge from a JSON, CSV or XLSX results file.

With the svg engine the gauge is written as a standalone HTML page; with
the term engine it is drawn to the terminal.

Examples:
  gaugeviz render --options cpu.yaml --results cpu.csv --out cpu.html
  gaugeviz render --options cpu.yaml --results cpu.csv --out cpu.pdf
  gaugeviz render --options disk.yaml --results usage.xlsx --sheet Disk --engine term
  gaugeviz render --options cpu.yaml --results cpu.json --engine term --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		optionsPath, _ := cmd.Flags().GetString("options")
		resultsPath, _ := cmd.Flags().GetString("results")
		sheet, _ := cmd.Flags().GetString("sheet")
		groups, _ := cmd.Flags().GetStringSlice("groups")
		engine, _ := cmd.Flags().GetString("engine")
		out, _ := cmd.Flags().GetString("out")
		watch, _ := cmd.Flags().GetBool("watch")
		interval, _ := cmd.Flags().GetDuration("interval")
		if watch && interval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", interval)
		}

		opts, err := readOptions(optionsPath)
		if err != nil {
			return err
		}
		if engine == "" {
			engine = cfg.Render.Engine
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := newRenderer(cfg.Render, cfg.Palette, engine, opts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer r.g.Close()
		r.spec = source.Spec{Path: resultsPath, Sheet: sheet, Groups: groups}
		r.out = out

		if err := r.draw(ctx, true); err != nil {
			return err
		}
		if !watch {
			return nil
		}
		return r.watch(ctx, interval)
	},
}

func init() {
	renderCmd.Flags().String("options", "", "visualization options file (YAML or JSON)")
	renderCmd.Flags().String("results", "", "results file (.json, .csv, .xlsx)")
	renderCmd.Flags().String("sheet", "", "XLSX sheet (default: first sheet)")
	renderCmd.Flags().StringSlice("groups", nil, "columns to treat as group-by properties")
	renderCmd.Flags().String("engine", "", "render engine: svg or term (overrides render.engine)")
	renderCmd.Flags().String("out", "", "write the page to this file (.html or .pdf) instead of stdout")
	renderCmd.Flags().Bool("watch", false, "redraw whenever the results file changes")
	renderCmd.Flags().Duration("interval", time.Second, "poll interval for --watch")
	_ = renderCmd.MarkFlagRequired("results")
}

// readOptions decodes a visualization options file. JSON is read as YAML.
// An empty path yields the defaults.
func readOptions(path string) (models.VisualizationOptions, error) {
	var opts models.VisualizationOptions
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options %s: %w", path, err)
	}
	return opts, nil
}

// renderer draws one gauge from a results file.
type renderer struct {
	g      *gauge.Gauge
	loader *source.Loader
	spec   source.Spec
	html   bool   // write a page after each draw
	out    string // page file; "" writes to w
	w      io.Writer
	seen   time.Time // results mtime at the last draw
}

func newRenderer(rc config.RenderConfig, pc config.PaletteConfig, engineName string, opts models.VisualizationOptions, w io.Writer) (*renderer, error) {
	isTerm := strings.EqualFold(engineName, chart.EngineTerm)
	var termOut io.Writer
	if isTerm {
		termOut = w
	}
	engine, err := chart.NewEngine(engineName, termOut)
	if err != nil {
		return nil, err
	}

	doc, err := dom.NewDocument(`<div id="gauge"></div>`)
	if err != nil {
		return nil, err
	}
	g, err := gauge.New(doc, "#gauge", opts, gauge.Config{
		Engine:     engine,
		Palette:    palette.New(pc.Colors),
		Logger:     logger,
		FullReload: rc.FullReload(),
		Update:     rc.Update(),
		Width:      rc.Width,
		Height:     rc.Height,
	})
	if err != nil {
		return nil, err
	}
	return &renderer{g: g, loader: source.NewLoader(0), html: !isTerm, w: w}, nil
}

// draw loads the results file into the gauge and writes the page.
func (r *renderer) draw(ctx context.Context, fullReload bool) error {
	if mt, err := modTime(r.spec.Path); err == nil {
		r.seen = mt
	}
	if err := r.g.DisplayData(ctx, r.loader.Promise(ctx, r.spec), fullReload).Wait(ctx); err != nil {
		return fmt.Errorf("render %s: %w", r.spec.Path, err)
	}
	if !r.html {
		return nil
	}

	body, err := r.g.HTML()
	if err != nil {
		return err
	}
	title := r.g.Options().Title
	if title == "" {
		title = "gaugeviz"
	}
	var buf bytes.Buffer
	if err := web.RenderPage(&buf, web.Page{Title: title, Body: template.HTML(body)}); err != nil {
		return err
	}
	if r.out == "" {
		_, err = r.w.Write(buf.Bytes())
		return err
	}
	written, err := export.WriteFile(ctx, buf.Bytes(), r.out, export.Options{})
	if err != nil {
		return err
	}
	logger.Debug("render: page written", "path", written)
	return nil
}

// watch polls the results file and redraws on change until ctx is done.
// Failed redraws are logged; the gauge shows the error in place.
func (r *renderer) watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch: interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		mt, err := modTime(r.spec.Path)
		if err != nil {
			logger.Warn("watch: stat results", "path", r.spec.Path, "error", err)
			continue
		}
		if mt.Equal(r.seen) {
			continue
		}
		if err := r.draw(ctx, false); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Warn("watch: redraw failed", "error", err)
		}
	}
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// --- Board Command ---

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Render a dashboard of gauges to one HTML page",
	Long: `Render every panel of a dashboard file. Panels load concurrently
(render.concurrent_loads at a time); a panel whose results cannot be read
shows the error in place.

Example dashboard:
  title: Fleet
  panels:
    - id: cpu
      options: {title: CPU, gauge: {max: 100}}
      source: {path: cpu.csv}`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		out, _ := cmd.Flags().GetString("out")
		landscape, _ := cmd.Flags().GetBool("landscape")

		d, err := board.LoadFile(file)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		page, err := buildBoard(ctx, d)
		if err != nil {
			return err
		}
		if out == "" {
			_, err = cmd.OutOrStdout().Write(page)
			return err
		}
		opts := export.Options{}
		if landscape {
			opts.Orientation = "landscape"
		}
		written, err := export.WriteFile(ctx, page, out, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", written)
		return nil
	},
}

func init() {
	boardCmd.Flags().String("file", "", "dashboard file (YAML)")
	boardCmd.Flags().String("out", "", "write the page to this file (.html or .pdf) instead of stdout")
	boardCmd.Flags().Bool("landscape", false, "landscape PDF pages")
	_ = boardCmd.MarkFlagRequired("file")
}

// buildBoard renders d with the svg engine and returns the page.
func buildBoard(ctx context.Context, d *board.Dashboard) ([]byte, error) {
	b, err := board.Build(ctx, d, board.Config{
		Engine:      chart.SVGEngine{},
		Palette:     palette.New(cfg.Palette.Colors),
		Loader:      source.NewLoader(0),
		Logger:      logger,
		Concurrency: cfg.Render.ConcurrentLoads,
		Gauge: gauge.Config{
			FullReload: cfg.Render.FullReload(),
			Update:     cfg.Render.Update(),
			Width:      cfg.Render.Width,
			Height:     cfg.Render.Height,
		},
	})
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if err := b.Err(); err != nil {
		logger.Warn("board: some panels failed", "error", err)
	}
	return b.Page()
}
