package web

import (
	"bytes"
	"html/template"
	"strings"
	"testing"
)

func TestRenderPage(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPage(&buf, Page{
		Title: "Ops <prod>",
		Body:  template.HTML(`<div id="cpu" class="connect-board-panel"></div>`),
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.Contains(out, "Ops &lt;prod&gt;") {
		t.Error("title should be escaped")
	}
	if !strings.Contains(out, `<div id="cpu" class="connect-board-panel"></div>`) {
		t.Error("body should be emitted verbatim")
	}
	if strings.Contains(out, "WebSocket") {
		t.Error("static pages carry no live client")
	}
}

func TestRenderPageLive(t *testing.T) {
	tests := []struct {
		name   string
		wsPath string
		want   string
	}{
		{"default path", "", `"/api/v1/ws"`},
		{"custom path", "/live/events", `"/live/events"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderPage(&buf, Page{Title: "live", Live: true, WSPath: tt.wsPath}); err != nil {
				t.Fatal(err)
			}
			// Older escapers write "/" as "\/" inside scripts.
			out := strings.ReplaceAll(buf.String(), `\/`, "/")
			if !strings.Contains(out, "new WebSocket(proto + location.host + "+tt.want+")") {
				t.Errorf("live client missing %s:\n%s", tt.want, out)
			}
		})
	}
}
