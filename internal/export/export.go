// Package export writes rendered gauge pages to disk as HTML, or as PDF
// through a headless converter found on PATH.
package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Converter names an HTML→PDF converter.
type Converter string

const (
	ConverterAuto     Converter = ""
	ConverterWKHTML   Converter = "wkhtmltopdf"
	ConverterChromium Converter = "chromium"
	ConverterNone     Converter = "none" // write HTML instead
)

var chromiumBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// Options controls PDF conversion. HTML output ignores it.
type Options struct {
	Converter   Converter
	PageSize    string // default: "A4"
	Orientation string // "portrait" (default) or "landscape"
	Margin      string // all four margins, default: "10mm"
}

func (o Options) withDefaults() Options {
	if o.PageSize == "" {
		o.PageSize = "A4"
	}
	if o.Orientation == "" {
		o.Orientation = "portrait"
	}
	if o.Margin == "" {
		o.Margin = "10mm"
	}
	return o
}

// Detect returns the converter available on PATH, or ConverterNone.
func Detect() Converter {
	if _, err := exec.LookPath("wkhtmltopdf"); err == nil {
		return ConverterWKHTML
	}
	if chromiumBinary() != "" {
		return ConverterChromium
	}
	return ConverterNone
}

func chromiumBinary() string {
	for _, name := range chromiumBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// WriteFile writes page to path. A .pdf path is converted; when no
// converter is available the page is written next to it with an .html
// extension instead. The path actually written is returned.
func WriteFile(ctx context.Context, page []byte, path string, opts Options) (string, error) {
	if path == "" {
		return "", fmt.Errorf("export: output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("export: creating output directory: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return path, writeHTML(page, path)
	}

	opts = opts.withDefaults()
	conv := opts.Converter
	if conv == ConverterAuto {
		conv = Detect()
	}

	switch conv {
	case ConverterWKHTML:
		return path, convert(ctx, page, func(src string) *exec.Cmd {
			return exec.CommandContext(ctx, "wkhtmltopdf",
				"--page-size", opts.PageSize,
				"--orientation", opts.Orientation,
				"--margin-top", opts.Margin,
				"--margin-bottom", opts.Margin,
				"--margin-left", opts.Margin,
				"--margin-right", opts.Margin,
				"--encoding", "UTF-8",
				"--enable-local-file-access",
				"--quiet",
				src, path)
		})
	case ConverterChromium:
		bin := chromiumBinary()
		if bin == "" {
			return "", fmt.Errorf("export: chromium not found in PATH")
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("export: resolving output path: %w", err)
		}
		return path, convert(ctx, page, func(src string) *exec.Cmd {
			args := []string{"--headless", "--disable-gpu", "--no-sandbox", "--print-to-pdf=" + abs, "--print-to-pdf-no-header"}
			if strings.EqualFold(opts.Orientation, "landscape") {
				args = append(args, "--landscape")
			}
			return exec.CommandContext(ctx, bin, append(args, "file://"+src)...)
		})
	case ConverterNone:
		fallback := strings.TrimSuffix(path, filepath.Ext(path)) + ".html"
		return fallback, writeHTML(page, fallback)
	default:
		return "", fmt.Errorf("export: unsupported converter %q", conv)
	}
}

func writeHTML(page []byte, path string) error {
	if err := os.WriteFile(path, page, 0644); err != nil {
		return fmt.Errorf("export: writing HTML: %w", err)
	}
	return nil
}

// convert stages page in a temp file and runs the converter on it.
func convert(ctx context.Context, page []byte, command func(src string) *exec.Cmd) error {
	tmp, err := os.CreateTemp("", "gaugeviz-*.html")
	if err != nil {
		return fmt.Errorf("export: staging HTML: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		return fmt.Errorf("export: staging HTML: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: staging HTML: %w", err)
	}

	cmd := command(tmp.Name())
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("export: %s failed: %w\nOutput: %s", filepath.Base(cmd.Path), err, output)
	}
	return nil
}
