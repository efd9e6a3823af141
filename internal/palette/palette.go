// Package palette assigns colors to chart series.
package palette

// DefaultColors is the swatch used when no palette is configured.
var DefaultColors = []string{
	"#00bbde", // cyan
	"#fe6672", // coral
	"#eeb058", // amber
	"#8a8ad6", // lavender
	"#ff855c", // orange
	"#00cfbb", // teal
	"#5a9eed", // blue
	"#73d483", // green
	"#c879bb", // orchid
	"#0099b6", // deep cyan
}

// Palette maps series keys to colors. It is stateless: the same keys and
// override always produce the same assignment.
type Palette struct {
	colors []string
}

// New creates a palette over colors, or DefaultColors when colors is empty.
func New(colors []string) *Palette {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	return &Palette{colors: append([]string(nil), colors...)}
}

// Colors returns a copy of the base swatch.
func (p *Palette) Colors() []string {
	return append([]string(nil), p.colors...)
}

// GetSwatch assigns a color to every key by position. Override colors, when
// given, are used first; positions past the override fall back to the base
// swatch, cycling when keys outnumber colors.
func (p *Palette) GetSwatch(keys []string, override []string) map[string]string {
	swatch := make(map[string]string, len(keys))
	for i, key := range keys {
		if _, ok := swatch[key]; ok {
			continue
		}
		if i < len(override) && override[i] != "" {
			swatch[key] = override[i]
			continue
		}
		swatch[key] = p.colors[i%len(p.colors)]
	}
	return swatch
}
