package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seenimoa/gaugeviz/internal/config"
	"github.com/seenimoa/gaugeviz/internal/gauge"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// envelope is APIResponse with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return env
}

// viewJSON mirrors GaugeView without the options, whose bounds are an
// interface and do not decode.
type viewJSON struct {
	ID       string         `json:"id"`
	Snapshot gauge.Snapshot `json:"snapshot"`
}

const cpuGauge = `{"id": "cpu", "options": {"title": "CPU", "gauge": {"min": 0, "max": 200}}}`

const cpuResults = `{"results": {"results": [{"cpu": 50}], "metadata": {"selects": ["cpu"]}}}`

func createGauge(t *testing.T, srv *Server, body string) viewJSON {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/gauges", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	var v viewJSON
	decodeResponse(t, rec, &v)
	return v
}

// ════════════════════════════════════════════════════════════════════
// Health / helpers
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q", ct)
		}
		var data map[string]any
		decodeResponse(t, rec, &data)
		if data["status"] != "ok" || data["gauges"] != 1.0 || data["version"] != Version {
			t.Errorf("%s: data = %v", path, data)
		}
	}
}

func TestNewServerRejectsUnknownEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Render.Engine = "canvas"
	if _, err := NewServer(cfg, nil); err == nil {
		t.Error("NewServer should fail for an unknown engine")
	}
}

func TestWriteError_VariousStatusCodes(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		rec := httptest.NewRecorder()
		writeError(rec, code, "boom")
		if rec.Code != code {
			t.Errorf("status: got %d, want %d", rec.Code, code)
		}
		env := decodeResponse(t, rec, nil)
		if env.Success || env.Error != "boom" {
			t.Errorf("envelope = %+v", env)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Gauge CRUD
// ════════════════════════════════════════════════════════════════════

func TestCreateGauge(t *testing.T) {
	srv := testServer(t)
	v := createGauge(t, srv, cpuGauge)

	if v.ID != "cpu" {
		t.Errorf("ID: got %q", v.ID)
	}
	if v.Snapshot.State != "unrendered" || v.Snapshot.Title != "CPU" || v.Snapshot.Mode != "static" {
		t.Errorf("snapshot = %+v", v.Snapshot)
	}
}

func TestCreateGauge_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"id":`, http.StatusBadRequest},
		{"empty id", `{"id": ""}`, http.StatusBadRequest},
		{"id with markup", `{"id": "a\"><script>"}`, http.StatusBadRequest},
		{"bad bound", `{"id": "x", "options": {"gauge": {"min": true}}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t)
			rec := do(t, srv, http.MethodPost, "/api/v1/gauges", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateGauge_Duplicate(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)
	rec := do(t, srv, http.MethodPost, "/api/v1/gauges", cpuGauge)
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestListAndGetGauges(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)
	createGauge(t, srv, `{"id": "disk", "options": {"gauge": {"max": "limit"}}}`)

	var list []viewJSON
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/gauges", ""), &list)
	if len(list) != 2 || list[0].ID != "cpu" || list[1].ID != "disk" {
		t.Fatalf("list = %+v", list)
	}
	if list[1].Snapshot.Mode != "field" {
		t.Errorf("disk mode: got %q, want field", list[1].Snapshot.Mode)
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/gauges/disk", "")
	var v viewJSON
	decodeResponse(t, rec, &v)
	if rec.Code != http.StatusOK || v.ID != "disk" {
		t.Errorf("get: status %d, view %+v", rec.Code, v)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/gauges/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown gauge: status %d", rec.Code)
	}
}

func TestRenderGauge(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/render", "")
	var v viewJSON
	decodeResponse(t, rec, &v)
	if rec.Code != http.StatusOK || v.Snapshot.State != "rendered" {
		t.Fatalf("render: status %d, snapshot %+v", rec.Code, v.Snapshot)
	}
	if v.Snapshot.Chart == nil || v.Snapshot.Chart.Max != 200 {
		t.Errorf("chart = %+v", v.Snapshot.Chart)
	}
}

func TestDeleteGauge(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	if rec := do(t, srv, http.MethodDelete, "/api/v1/gauges/cpu", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/gauges/cpu", ""); rec.Code != http.StatusNotFound {
		t.Errorf("deleted gauge still served: %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/api/v1/gauges/cpu", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d", rec.Code)
	}
	// The id is free again.
	createGauge(t, srv, cpuGauge)
}

// ════════════════════════════════════════════════════════════════════
// Result delivery
// ════════════════════════════════════════════════════════════════════

func TestDeliverResults_Wait(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var v viewJSON
	decodeResponse(t, rec, &v)

	s := v.Snapshot
	if s.State != "rendered" || s.Loading || s.Error != "" {
		t.Errorf("snapshot = %+v", s)
	}
	if len(s.Labels) != 1 || s.Labels[0] != "cpu" {
		t.Errorf("labels = %v", s.Labels)
	}
	if s.Chart == nil || len(s.Chart.Series) != 1 || s.Chart.Series[0].Ratio != 0.25 {
		t.Errorf("chart = %+v", s.Chart)
	}
	if s.Chart.TransitionDuration != srv.cfg.Render.FullReload() {
		t.Errorf("full reload transition: got %v", s.Chart.TransitionDuration)
	}
}

func TestDeliverResults_UpdateTransition(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	body := `{"fullReload": false, "results": {"results": [{"cpu": 10}], "metadata": {"selects": ["cpu"]}}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=1", body)
	var v viewJSON
	decodeResponse(t, rec, &v)
	if v.Snapshot.Chart == nil || v.Snapshot.Chart.TransitionDuration != srv.cfg.Render.Update() {
		t.Errorf("update transition: %+v", v.Snapshot.Chart)
	}
}

func TestDeliverResults_FieldBounds(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, `{"id": "disk", "options": {"gauge": {"max": "limit"}}}`)

	body := `{"results": {"results": [{"used": 30, "limit": 60}], "metadata": {"selects": ["used", "limit"]}}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/disk/results?wait=true", body)
	var v viewJSON
	decodeResponse(t, rec, &v)

	if len(v.Snapshot.Labels) != 1 || v.Snapshot.Labels[0] != "used" {
		t.Errorf("bound field should not be drawn: labels %v", v.Snapshot.Labels)
	}
	if c := v.Snapshot.Chart; c == nil || c.Max != 60 || !c.ShowLabel {
		t.Errorf("chart = %+v", c)
	}
}

func TestDeliverResults_Async(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results", cpuResults)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, want 202", rec.Code)
	}
	// A waited delivery after it supersedes or follows it; either way the
	// gauge ends up loaded.
	rec = do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeliverResults_FromSource(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	path := filepath.Join(t.TempDir(), "cpu.csv")
	if err := os.WriteFile(path, []byte("cpu\n150\n"), 0644); err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(map[string]any{"source": map[string]any{"path": path}})

	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", string(body))
	var v viewJSON
	decodeResponse(t, rec, &v)
	if rec.Code != http.StatusOK || v.Snapshot.Chart == nil || v.Snapshot.Chart.Series[0].Ratio != 0.75 {
		t.Errorf("status %d, snapshot %+v", rec.Code, v.Snapshot)
	}
}

func TestDeliverResults_SourceFailure(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)

	body := `{"source": {"path": "/nonexistent/results.csv"}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", rec.Code)
	}

	var v viewJSON
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/gauges/cpu", ""), &v)
	if v.Snapshot.Error == "" || v.Snapshot.Loading {
		t.Errorf("failed load should show an error and hide the loader: %+v", v.Snapshot)
	}
}

func TestDeliverResults_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"results": [`},
		{"neither", `{}`},
		{"both", `{"results": {"results": []}, "source": {"path": "x.csv"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t)
			createGauge(t, srv, cpuGauge)
			rec := do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", rec.Code)
			}
		})
	}
}

func TestClearGauge(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)
	do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)

	rec := do(t, srv, http.MethodDelete, "/api/v1/gauges/cpu/render", "")
	var v viewJSON
	decodeResponse(t, rec, &v)
	if v.Snapshot.State != "unrendered" || v.Snapshot.Chart != nil || len(v.Snapshot.Labels) != 0 {
		t.Errorf("cleared snapshot = %+v", v.Snapshot)
	}

	html := do(t, srv, http.MethodGet, "/api/v1/gauges/cpu/html", "").Body.String()
	if html != "" {
		t.Errorf("cleared gauge html = %q", html)
	}

	// Redraws after a clear.
	rec = do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)
	decodeResponse(t, rec, &v)
	if v.Snapshot.State != "rendered" {
		t.Errorf("state after redraw: %q", v.Snapshot.State)
	}
}

// ════════════════════════════════════════════════════════════════════
// Markup
// ════════════════════════════════════════════════════════════════════

func TestGaugeHTML(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)
	do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)

	rec := do(t, srv, http.MethodGet, "/api/v1/gauges/cpu/html", "")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{gauge.ContainerClass, "<svg", "CPU"} {
		if !strings.Contains(body, want) {
			t.Errorf("html missing %q:\n%s", want, body)
		}
	}
}

func TestIndexPage(t *testing.T) {
	srv := testServer(t)
	createGauge(t, srv, cpuGauge)
	do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)

	rec := do(t, srv, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`<div id="cpu" class="` + HostClass + `">`, "<svg", "WebSocket"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if rec := do(t, srv, http.MethodGet, "/gauges/cpu", ""); rec.Code != http.StatusOK {
		t.Errorf("gauge page: status %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/gauges/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown gauge page: status %d", rec.Code)
	}
}

func TestServeUIDisabled(t *testing.T) {
	srv := testServer(t)
	srv.SetServeUI(false)
	if rec := do(t, srv, http.MethodGet, "/", ""); rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

// ════════════════════════════════════════════════════════════════════
// Configuration
// ════════════════════════════════════════════════════════════════════

func TestGetConfig(t *testing.T) {
	srv := testServer(t)
	var resp struct {
		Config config.Config `json:"config"`
	}
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/config", ""), &resp)
	if resp.Config.Render.Engine != "svg" || resp.Config.API.Port != 8080 {
		t.Errorf("config = %+v", resp.Config)
	}
}

func TestUpdateConfig(t *testing.T) {
	srv := testServer(t)

	body := `{"render": {"engine": "term", "update_ms": 50}, "palette": {"colors": ["#123456"]}}`
	rec := do(t, srv, http.MethodPut, "/api/v1/config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if srv.cfg.Render.Engine != "term" || srv.cfg.Render.UpdateMS != 50 || srv.cfg.Render.Width != 300 {
		t.Errorf("render = %+v", srv.cfg.Render)
	}

	// New gauges pick up the palette.
	createGauge(t, srv, cpuGauge)
	rec = do(t, srv, http.MethodPost, "/api/v1/gauges/cpu/results?wait=true", cpuResults)
	var v viewJSON
	decodeResponse(t, rec, &v)
	if v.Snapshot.Colors["cpu"] != "#123456" {
		t.Errorf("colors = %v", v.Snapshot.Colors)
	}
}

func TestUpdateConfig_Invalid(t *testing.T) {
	srv := testServer(t)
	for _, body := range []string{`{"render": {"engine": "canvas"}}`, `{"render": {"update_ms": -1}}`, `{"render":`} {
		rec := do(t, srv, http.MethodPut, "/api/v1/config", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, rec.Code)
		}
	}
	if srv.cfg.Render.Engine != "svg" || srv.cfg.Render.UpdateMS != 300 {
		t.Errorf("rejected update leaked into config: %+v", srv.cfg.Render)
	}
}

func TestGetConfigSources(t *testing.T) {
	srv := testServer(t)
	var sources []config.SettingStatus
	decodeResponse(t, do(t, srv, http.MethodGet, "/api/v1/config/sources", ""), &sources)
	if len(sources) == 0 {
		t.Fatal("no sources reported")
	}
	for _, s := range sources {
		if s.Key == "" || s.EnvVar == "" {
			t.Errorf("incomplete status %+v", s)
		}
	}
}
