// Package chart is the rendering engine behind the gauge controller. An
// Engine generates a Chart bound to a mount element; the chart then takes
// repeated data loads and explicit configuration updates in place.
package chart

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/seenimoa/gaugeviz/pkg/models"
	"github.com/seenimoa/gaugeviz/pkg/utils"
)

// Engine names accepted by NewEngine.
const (
	EngineSVG  = "svg"
	EngineTerm = "term"
)

// TypeGauge is the only chart type the engines draw.
const TypeGauge = "gauge"

var (
	// ErrUnknownEngine is returned by NewEngine for unregistered names.
	ErrUnknownEngine = errors.New("chart: unknown engine")
	// ErrUnsupportedType is returned by Generate for non-gauge configs.
	ErrUnsupportedType = errors.New("chart: unsupported chart type")
)

// GaugeConfig is the gauge section of a chart configuration.
type GaugeConfig struct {
	Min       float64
	Max       float64
	ShowLabel bool
	Units     string
	Width     int // arc thickness in px
	// LabelFormat formats the min/max labels. Nil prints utils.FormatNumber.
	LabelFormat models.ValueFormatter
}

// TooltipFormatter formats a series value for display. ratio is the
// position of value between min and max.
type TooltipFormatter func(value any, ratio float64, id string, index int) any

// Config is passed once to Engine.Generate.
type Config struct {
	BindTo             *html.Node
	Type               string
	Width              int
	Height             int
	Padding            models.Padding
	Gauge              GaugeConfig
	TransitionDuration time.Duration
	Tooltip            TooltipFormatter
}

// Keys selects the x column and the value columns of a load.
type Keys struct {
	X     string
	Value []string
}

// LoadRequest replaces the chart data.
type LoadRequest struct {
	JSON   []map[string]any
	Keys   Keys
	Colors map[string]string
}

// UpdateDescriptor changes live configuration. Nil fields are left alone.
type UpdateDescriptor struct {
	Min                *float64
	Max                *float64
	ShowLabel          *bool
	TransitionDuration time.Duration
}

// Series is one drawn value track.
type Series struct {
	ID       string  `json:"id"`
	Value    any     `json:"value"`
	Ratio    float64 `json:"ratio"`
	Color    string  `json:"color"`
	HasValue bool    `json:"has_value"`
}

// Snapshot is the live state of a chart.
type Snapshot struct {
	Min                float64       `json:"min"`
	Max                float64       `json:"max"`
	ShowLabel          bool          `json:"show_label"`
	TransitionDuration time.Duration `json:"transition_duration"`
	Series             []Series      `json:"series"`
	Loads              int           `json:"loads"`
}

// Chart is a generated, live chart.
type Chart interface {
	// Load replaces the data and redraws.
	Load(req LoadRequest) error
	// Update applies live configuration; it takes effect on the next Load.
	Update(d UpdateDescriptor)
	// Snapshot reports the current state.
	Snapshot() Snapshot
	// Destroy releases the chart; further calls are no-ops.
	Destroy()
}

// Engine creates charts.
type Engine interface {
	Generate(cfg Config) (Chart, error)
}

// NewEngine returns the named engine. The terminal engine also writes
// each redraw to out when out is non-nil.
func NewEngine(name string, out io.Writer) (Engine, error) {
	switch strings.ToLower(name) {
	case "", EngineSVG:
		return SVGEngine{}, nil
	case EngineTerm:
		return TermEngine{Out: out}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// state is the engine-independent part of a chart: live config plus the
// series computed by the last load.
type state struct {
	cfg       Config
	series    []Series
	loads     int
	destroyed bool
}

func newState(cfg Config) (*state, error) {
	if cfg.Type != TypeGauge {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
	if cfg.Width <= 0 {
		cfg.Width = 300
	}
	if cfg.Height <= 0 {
		cfg.Height = 180
	}
	if cfg.Gauge.Width <= 0 {
		cfg.Gauge.Width = 20
	}
	return &state{cfg: cfg}, nil
}

func (s *state) update(d UpdateDescriptor) {
	if d.Min != nil {
		s.cfg.Gauge.Min = *d.Min
	}
	if d.Max != nil {
		s.cfg.Gauge.Max = *d.Max
	}
	if d.ShowLabel != nil {
		s.cfg.Gauge.ShowLabel = *d.ShowLabel
	}
	s.cfg.TransitionDuration = d.TransitionDuration
}

// load computes one series per value key from the last row carrying it.
func (s *state) load(req LoadRequest) {
	s.loads++
	s.series = s.series[:0]
	for _, id := range req.Keys.Value {
		sr := Series{ID: id, Color: req.Colors[id]}
		for i := len(req.JSON) - 1; i >= 0; i-- {
			if v, ok := req.JSON[i][id]; ok {
				sr.Value = v
				sr.HasValue = true
				break
			}
		}
		if n, ok := utils.ToFloat(sr.Value); ok {
			sr.Ratio = s.ratio(n)
		}
		s.series = append(s.series, sr)
	}
}

// ratio places v in [min, max], clamped to [0, 1]. An empty or inverted
// range yields 0.
func (s *state) ratio(v float64) float64 {
	lo, hi := s.cfg.Gauge.Min, s.cfg.Gauge.Max
	if hi <= lo {
		return 0
	}
	r := (v - lo) / (hi - lo)
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Min:                s.cfg.Gauge.Min,
		Max:                s.cfg.Gauge.Max,
		ShowLabel:          s.cfg.Gauge.ShowLabel,
		TransitionDuration: s.cfg.TransitionDuration,
		Series:             append([]Series(nil), s.series...),
		Loads:              s.loads,
	}
}

// valueText formats a series value through the tooltip formatter.
func (s *state) valueText(sr Series, index int) string {
	if !sr.HasValue {
		return "–"
	}
	v := sr.Value
	if s.cfg.Tooltip != nil {
		v = s.cfg.Tooltip(sr.Value, sr.Ratio, sr.ID, index)
	}
	if n, ok := v.(float64); ok {
		return utils.FormatNumber(n)
	}
	return fmt.Sprint(v)
}

// boundText formats a min/max label.
func (s *state) boundText(v float64) string {
	if f := s.cfg.Gauge.LabelFormat; f != nil {
		return fmt.Sprint(f(v))
	}
	return utils.FormatNumber(v)
}
