package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueFormatter turns a raw result value into its display form.
type ValueFormatter func(value any) any

// VisualizationOptions is the caller-supplied configuration of a gauge.
// Every section is optional; the gauge normalizer fills in defaults.
type VisualizationOptions struct {
	Title  string                 `json:"title,omitempty"  yaml:"title,omitempty"`
	Fields map[string]FieldOption `json:"fields,omitempty" yaml:"fields,omitempty"`
	Gauge  *GaugeOptions          `json:"gauge,omitempty"  yaml:"gauge,omitempty"`
}

// FieldOption customizes how one select or group property is displayed.
type FieldOption struct {
	Label string `json:"label,omitempty"  yaml:"label,omitempty"`
	// Format names a formatter from pkg/utils ("percent", "currency:USD", ...).
	// It is only consulted when ValueFormatter is nil.
	Format         string         `json:"format,omitempty" yaml:"format,omitempty"`
	ValueFormatter ValueFormatter `json:"-"                yaml:"-"`
}

// GaugeOptions holds gauge-specific settings.
type GaugeOptions struct {
	Min         Bound    `json:"min,omitempty"          yaml:"min,omitempty"`
	Max         Bound    `json:"max,omitempty"          yaml:"max,omitempty"`
	Color       string   `json:"color,omitempty"        yaml:"color,omitempty"`
	Units       string   `json:"units,omitempty"        yaml:"units,omitempty"`
	Width       int      `json:"width,omitempty"        yaml:"width,omitempty"` // arc thickness in px
	LabelFormat string   `json:"label_format,omitempty" yaml:"label_format,omitempty"`
	ShowLabel   *bool    `json:"show_label,omitempty"   yaml:"show_label,omitempty"`
	Padding     *Padding `json:"padding,omitempty"      yaml:"padding,omitempty"`
}

// Padding is the space reserved around the chart, in px.
type Padding struct {
	Top    int `json:"top,omitempty"    yaml:"top,omitempty"`
	Right  int `json:"right,omitempty"  yaml:"right,omitempty"`
	Bottom int `json:"bottom,omitempty" yaml:"bottom,omitempty"`
	Left   int `json:"left,omitempty"   yaml:"left,omitempty"`
}

// Bound is a gauge min or max as written in configuration: either a literal
// number or the name of a result field to read the bound from. The zero
// value is unset.
type Bound struct {
	num   *float64
	field string
}

// NumberBound returns a literal bound.
func NumberBound(v float64) Bound { return Bound{num: &v} }

// FieldBound returns a bound read from the named result field.
func FieldBound(name string) Bound { return Bound{field: name} }

// IsSet reports whether the bound was configured at all.
func (b Bound) IsSet() bool { return b.num != nil || b.field != "" }

// IsField reports whether the bound names a result field.
func (b Bound) IsField() bool { return b.field != "" }

// Field returns the result field name, or "" for literal bounds.
func (b Bound) Field() string { return b.field }

// Number returns the literal value and whether one was set.
func (b Bound) Number() (float64, bool) {
	if b.num == nil {
		return 0, false
	}
	return *b.num, true
}

func (b Bound) String() string {
	switch {
	case b.field != "":
		return strconv.Quote(b.field)
	case b.num != nil:
		return strconv.FormatFloat(*b.num, 'g', -1, 64)
	default:
		return "<unset>"
	}
}

// MarshalJSON writes the bound back in its configured form.
func (b Bound) MarshalJSON() ([]byte, error) {
	switch {
	case b.field != "":
		return json.Marshal(b.field)
	case b.num != nil:
		return json.Marshal(*b.num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a string or null. An empty string means
// unset, the same as null.
func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*b = Bound{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("gauge bound: %w", err)
		}
		*b = FieldBound(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("gauge bound must be a number or a field name: %w", err)
	}
	*b = NumberBound(v)
	return nil
}

// MarshalYAML writes the bound back in its configured form.
func (b Bound) MarshalYAML() (any, error) {
	switch {
	case b.field != "":
		return b.field, nil
	case b.num != nil:
		return *b.num, nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML accepts a scalar. Quoted and plain non-numeric scalars are
// field names; numeric scalars are literals. An empty scalar means unset.
func (b *Bound) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("gauge bound: line %d: expected a scalar", node.Line)
	}
	switch node.Tag {
	case "!!null":
		*b = Bound{}
		return nil
	case "!!int", "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("gauge bound: line %d: %w", node.Line, err)
		}
		*b = NumberBound(v)
		return nil
	}
	*b = FieldBound(node.Value)
	return nil
}

// IsZero lets yaml omitempty drop unset bounds.
func (b Bound) IsZero() bool { return !b.IsSet() }
