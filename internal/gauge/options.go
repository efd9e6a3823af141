package gauge

import (
	"log/slog"

	"github.com/seenimoa/gaugeviz/pkg/models"
	"github.com/seenimoa/gaugeviz/pkg/utils"
)

// Default static range of a gauge whose bounds are not configured.
const (
	DefaultMin = 0.0
	DefaultMax = 100.0
)

// Bounds decides where the gauge range comes from. It is either
// StaticBounds or FieldBounds.
type Bounds interface {
	// Range returns the range the chart is generated with.
	Range() (lo, hi float64)
	isBounds()
}

// StaticBounds is a range fixed in configuration.
type StaticBounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (b StaticBounds) Range() (float64, float64) { return b.Min, b.Max }
func (StaticBounds) isBounds()                   {}

// FieldBounds reads min and/or max from the first result row. A side whose
// field is empty keeps the static value next to it.
type FieldBounds struct {
	MinField string  `json:"min_field,omitempty"`
	MaxField string  `json:"max_field,omitempty"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

func (b FieldBounds) Range() (float64, float64) { return b.Min, b.Max }
func (FieldBounds) isBounds()                   {}

// Fields returns the non-empty lookup field names, min first.
func (b FieldBounds) Fields() []string {
	var out []string
	for _, f := range []string{b.MinField, b.MaxField} {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// GaugeOptions is the normalized gauge section.
type GaugeOptions struct {
	Bounds    Bounds         `json:"bounds"`
	Color     string         `json:"color,omitempty"`
	Units     string         `json:"units,omitempty"`
	Width     int            `json:"width,omitempty"`
	ShowLabel bool           `json:"show_label"`
	Padding   models.Padding `json:"padding"`

	LabelFormatName string                `json:"label_format,omitempty"`
	LabelFormat     models.ValueFormatter `json:"-"`
}

// Options is a fully defaulted visualization configuration.
type Options struct {
	Title  string                        `json:"title"`
	Fields map[string]models.FieldOption `json:"fields"`
	Gauge  GaugeOptions                  `json:"gauge"`
}

// preset is the gauge section merged under the caller's settings.
type preset struct {
	showLabel bool
	min, max  float64
}

var (
	// staticPreset draws bound labels from the first paint.
	staticPreset = preset{showLabel: true, min: DefaultMin, max: DefaultMax}
	// lookupPreset keeps bound labels hidden until the first row supplies them.
	lookupPreset = preset{showLabel: false, min: DefaultMin, max: DefaultMax}
)

// Normalize fills in defaults and decides the bound policy. It never fails:
// missing sections become empty ones and unknown formatter names are
// ignored. raw is not modified.
func Normalize(raw models.VisualizationOptions) Options {
	opts := Options{
		Title:  raw.Title,
		Fields: make(map[string]models.FieldOption, len(raw.Fields)),
	}
	for name, f := range raw.Fields {
		if f.ValueFormatter == nil && f.Format != "" {
			if vf, ok := utils.Formatter(f.Format); ok {
				f.ValueFormatter = vf
			} else {
				slog.Debug("gauge: unknown field format", "field", name, "format", f.Format)
			}
		}
		opts.Fields[name] = f
	}

	var g models.GaugeOptions
	if raw.Gauge != nil {
		g = *raw.Gauge
	}

	// Lookup mode is entered when either bound names a field; only the
	// named side gets a lookup field.
	lookup := g.Min.IsField() || g.Max.IsField()
	p := staticPreset
	if lookup {
		p = lookupPreset
	}

	lo, hi := p.min, p.max
	if v, ok := g.Min.Number(); ok {
		lo = v
	}
	if v, ok := g.Max.Number(); ok {
		hi = v
	}

	if lookup {
		opts.Gauge.Bounds = FieldBounds{MinField: g.Min.Field(), MaxField: g.Max.Field(), Min: lo, Max: hi}
		opts.Gauge.ShowLabel = false
	} else {
		opts.Gauge.Bounds = StaticBounds{Min: lo, Max: hi}
		opts.Gauge.ShowLabel = p.showLabel
		if g.ShowLabel != nil {
			opts.Gauge.ShowLabel = *g.ShowLabel
		}
	}

	opts.Gauge.Color = g.Color
	opts.Gauge.Units = g.Units
	opts.Gauge.Width = g.Width
	if g.Padding != nil {
		opts.Gauge.Padding = *g.Padding
	}
	if g.LabelFormat != "" {
		if vf, ok := utils.Formatter(g.LabelFormat); ok {
			opts.Gauge.LabelFormatName = g.LabelFormat
			opts.Gauge.LabelFormat = vf
		} else {
			slog.Debug("gauge: unknown label format", "format", g.LabelFormat)
		}
	}
	return opts
}

// ExcludedSelects lists the selects that feed bounds rather than series.
func (o Options) ExcludedSelects() []string {
	if fb, ok := o.Gauge.Bounds.(FieldBounds); ok {
		return fb.Fields()
	}
	return nil
}

// LookupMode reports whether any bound is read from the results.
func (o Options) LookupMode() bool {
	_, ok := o.Gauge.Bounds.(FieldBounds)
	return ok
}

// Label returns the display label of a select, or the select itself.
func (o Options) Label(selectName string) string {
	if f, ok := o.Fields[selectName]; ok && f.Label != "" {
		return f.Label
	}
	return selectName
}

// formatter returns the value formatter of a field, or nil.
func (o Options) formatter(name string) models.ValueFormatter {
	return o.Fields[name].ValueFormatter
}
