// Package web embeds the HTML page template used for dashboards and the
// live gauge view served by the API.
//
// Usage in the API server:
//
//	err := web.RenderPage(w, web.Page{Title: "gauges", Body: body, Live: true})
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/page.html
var templates embed.FS

var page = template.Must(template.ParseFS(templates, "templates/page.html"))

// Page is the data of one rendered page.
type Page struct {
	Title string
	// Body is trusted markup produced by the gauge controllers.
	Body template.HTML
	// Live adds the WebSocket client that swaps gauge markup on updates.
	Live bool
	// WSPath is the WebSocket endpoint; defaults to /api/v1/ws.
	WSPath string
}

// RenderPage writes p as a standalone HTML document.
func RenderPage(w io.Writer, p Page) error {
	if p.WSPath == "" {
		p.WSPath = "/api/v1/ws"
	}
	if err := page.Execute(w, p); err != nil {
		return fmt.Errorf("web: render page: %w", err)
	}
	return nil
}
