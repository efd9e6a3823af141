package chart

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/seenimoa/gaugeviz/internal/dom"
)

const (
	termBarWidth   = 30
	termLabelWidth = 16
	termTrackColor = lipgloss.Color("#45475a")
	termMutedColor = lipgloss.Color("#7f849c")
)

// TermEngine draws gauges as horizontal block bars. Each redraw is written
// with ANSI styling to Out (when set) and as plain text into a <pre> under
// the bound element (when set).
type TermEngine struct {
	Out io.Writer
}

// Generate creates a terminal chart. Unlike the SVG engine it does not draw
// until the first load.
func (e TermEngine) Generate(cfg Config) (Chart, error) {
	st, err := newState(cfg)
	if err != nil {
		return nil, err
	}
	return &termChart{state: st, out: e.Out}, nil
}

type termChart struct {
	*state
	out io.Writer
}

func (c *termChart) Load(req LoadRequest) error {
	if c.destroyed {
		return nil
	}
	c.load(req)

	if c.out != nil {
		if _, err := io.WriteString(c.out, c.render(true)); err != nil {
			return fmt.Errorf("chart: write terminal gauge: %w", err)
		}
	}
	if c.cfg.BindTo != nil {
		pre := dom.CreateElement("pre", "connect-viz-term")
		dom.SetText(pre, c.render(false))
		dom.RemoveAllChildren(c.cfg.BindTo)
		c.cfg.BindTo.AppendChild(pre)
	}
	return nil
}

func (c *termChart) Update(d UpdateDescriptor) {
	if c.destroyed {
		return
	}
	c.update(d)
}

func (c *termChart) Snapshot() Snapshot { return c.snapshot() }

func (c *termChart) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	if c.cfg.BindTo != nil {
		dom.RemoveAllChildren(c.cfg.BindTo)
	}
}

// render lays out one line per series:
//
//	label            ██████████░░░░░░░░░░  42.5 %
func (c *termChart) render(styled bool) string {
	paint := func(color lipgloss.Color, bold bool, s string) string {
		if !styled {
			return s
		}
		st := lipgloss.NewStyle().Foreground(color)
		if bold {
			st = st.Bold(true)
		}
		return st.Render(s)
	}

	var sb strings.Builder
	if len(c.series) == 0 {
		sb.WriteString(paint(termMutedColor, false, strings.Repeat("░", termBarWidth)+"  no data"))
		sb.WriteByte('\n')
	}

	for i, sr := range c.series {
		filled := int(sr.Ratio * termBarWidth)
		if filled < 1 && sr.Ratio > 0 {
			filled = 1
		}
		empty := termBarWidth - filled

		color := lipgloss.Color(sr.Color)
		if sr.Color == "" {
			color = lipgloss.Color("#89b4fa")
		}

		label := sr.ID
		if len([]rune(label)) > termLabelWidth {
			label = string([]rune(label)[:termLabelWidth-1]) + "…"
		}

		sb.WriteString(fmt.Sprintf("%-*s ", termLabelWidth, label))
		sb.WriteString(paint(color, false, strings.Repeat("█", filled)))
		sb.WriteString(paint(termTrackColor, false, strings.Repeat("░", empty)))
		sb.WriteString("  ")
		sb.WriteString(paint(color, true, c.valueText(sr, i)))
		if c.cfg.Gauge.Units != "" {
			sb.WriteString(" " + c.cfg.Gauge.Units)
		}
		sb.WriteByte('\n')
	}

	if c.cfg.Gauge.ShowLabel {
		lo, hi := c.boundText(c.cfg.Gauge.Min), c.boundText(c.cfg.Gauge.Max)
		gap := termBarWidth - len([]rune(lo)) - len([]rune(hi))
		if gap < 1 {
			gap = 1
		}
		sb.WriteString(strings.Repeat(" ", termLabelWidth+1))
		sb.WriteString(paint(termMutedColor, false, lo+strings.Repeat(" ", gap)+hi))
		sb.WriteByte('\n')
	}

	return sb.String()
}
