package chart

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/net/html"

	"github.com/seenimoa/gaugeviz/internal/dom"
)

const (
	trackColor = "#e0e0e0"
	textColor  = "#333333"
	mutedColor = "#999999"
)

// SVGEngine draws half-arc gauges as inline SVG under the bound element.
type SVGEngine struct{}

// Generate binds a chart to cfg.BindTo and draws the empty gauge.
func (SVGEngine) Generate(cfg Config) (Chart, error) {
	if cfg.BindTo == nil {
		return nil, fmt.Errorf("chart: svg engine needs a bind target")
	}
	st, err := newState(cfg)
	if err != nil {
		return nil, err
	}
	c := &svgChart{state: st}
	if err := c.draw(); err != nil {
		return nil, err
	}
	return c, nil
}

type svgChart struct {
	*state
}

func (c *svgChart) Load(req LoadRequest) error {
	if c.destroyed {
		return nil
	}
	c.load(req)
	return c.draw()
}

func (c *svgChart) Update(d UpdateDescriptor) {
	if c.destroyed {
		return
	}
	c.update(d)
}

func (c *svgChart) Snapshot() Snapshot { return c.snapshot() }

func (c *svgChart) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	dom.RemoveAllChildren(c.cfg.BindTo)
}

func (c *svgChart) draw() error {
	dom.RemoveAllChildren(c.cfg.BindTo)
	return dom.AppendFragment(c.cfg.BindTo, c.markup())
}

// markup renders the gauge. The first series is the outer arc; further
// series are drawn as concentric arcs inside it.
func (c *svgChart) markup() string {
	cfg := c.cfg
	pad := cfg.Padding
	w := cfg.Width - pad.Left - pad.Right
	h := cfg.Height - pad.Top - pad.Bottom
	thickness := cfg.Gauge.Width

	cx := pad.Left + w/2
	cy := pad.Top + h - 24
	radius := minInt(w/2-thickness/2-4, h-thickness/2-30)
	if radius < thickness {
		radius = thickness
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" data-transition-ms="%d">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.TransitionDuration.Milliseconds()))

	if len(c.series) == 0 {
		sb.WriteString(arcPath(cx, cy, radius, 1, trackColor, thickness))
		sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" text-anchor="middle" fill="%s" font-size="14">No data</text>`,
			cx, cy-4, mutedColor))
	}

	for i, sr := range c.series {
		r := radius - i*(thickness+2)
		if r <= thickness/2 {
			break
		}
		color := sr.Color
		if color == "" {
			color = "#4a90d9"
		}
		text := c.valueText(sr, i)

		sb.WriteString(fmt.Sprintf(`<g class="connect-gauge-series" data-id="%s">`, escapeXML(sr.ID)))
		sb.WriteString(fmt.Sprintf(`<title>%s: %s</title>`, escapeXML(sr.ID), escapeXML(text)))
		sb.WriteString(arcPath(cx, cy, r, 1, trackColor, thickness))
		if sr.HasValue && sr.Ratio > 0 {
			sb.WriteString(arcPath(cx, cy, r, sr.Ratio, color, thickness))
		}
		sb.WriteString(`</g>`)

		if i == 0 {
			sb.WriteString(fmt.Sprintf(`<text class="connect-gauge-value" x="%d" y="%d" text-anchor="middle" font-size="22" font-weight="bold" fill="%s">%s</text>`,
				cx, cy-4, textColor, escapeXML(text)))
			if cfg.Gauge.Units != "" {
				sb.WriteString(fmt.Sprintf(`<text x="%d" y="%d" text-anchor="middle" font-size="11" fill="%s">%s</text>`,
					cx, cy+14, mutedColor, escapeXML(cfg.Gauge.Units)))
			}
		}
	}

	if cfg.Gauge.ShowLabel {
		sb.WriteString(fmt.Sprintf(`<text class="connect-gauge-min" x="%d" y="%d" text-anchor="middle" font-size="11" fill="%s">%s</text>`,
			cx-radius, cy+16, mutedColor, escapeXML(c.boundText(cfg.Gauge.Min))))
		sb.WriteString(fmt.Sprintf(`<text class="connect-gauge-max" x="%d" y="%d" text-anchor="middle" font-size="11" fill="%s">%s</text>`,
			cx+radius, cy+16, mutedColor, escapeXML(c.boundText(cfg.Gauge.Max))))
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}

// arcPath draws the left-to-right half arc from 0 up to ratio.
func arcPath(cx, cy, r int, ratio float64, color string, thickness int) string {
	endX := float64(cx) + float64(r)*math.Cos(math.Pi*(1-ratio))
	endY := float64(cy) - float64(r)*math.Sin(math.Pi*ratio)
	return fmt.Sprintf(`<path d="M %d %d A %d %d 0 0 1 %.1f %.1f" fill="none" stroke="%s" stroke-width="%d"/>`,
		cx-r, cy, r, r, endX, endY, color, thickness)
}

func escapeXML(s string) string {
	return html.EscapeString(s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
