package api

import (
	"encoding/json"
	"net/http"

	"github.com/seenimoa/gaugeviz/internal/chart"
	"github.com/seenimoa/gaugeviz/internal/config"
	"github.com/seenimoa/gaugeviz/internal/palette"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     config.Config `json:"config"`
	ConfigFile string        `json:"config_file"` // path to the active config file
}

// ConfigUpdate is a partial configuration. Only the render, palette and
// logging sections can change at runtime; API settings need a restart.
type ConfigUpdate struct {
	Render  *config.RenderConfig  `json:"render,omitempty"`
	Palette *config.PaletteConfig `json:"palette,omitempty"`
	Logging *config.LoggingConfig `json:"logging,omitempty"`
}

// handleGetConfig returns the running configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.configResponse()})
}

// handleUpdateConfig merges a partial configuration into the running one.
// The change applies to gauges created afterwards; nothing is persisted.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var incoming ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	s.mu.Lock()
	next := *s.cfg
	mergeConfig(&next, &incoming)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	engine, err := chart.NewEngine(next.Render.Engine, nil)
	if err != nil {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	*s.cfg = next
	s.engine = engine
	s.palette = palette.New(next.Palette.Colors)
	s.mu.Unlock()

	s.logger.Info("configuration updated", "engine", next.Render.Engine)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.configResponse()})
}

// handleGetConfigSources reports where each setting came from.
func (s *Server) handleGetConfigSources(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	sources := config.Sources(s.cfg)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sources})
}

func (s *Server) configResponse() ConfigResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ConfigResponse{Config: *s.cfg, ConfigFile: s.cfg.File()}
}

// mergeConfig copies non-zero values from src into dst.
func mergeConfig(dst *config.Config, src *ConfigUpdate) {
	if rc := src.Render; rc != nil {
		if rc.Engine != "" {
			dst.Render.Engine = rc.Engine
		}
		if rc.Width > 0 {
			dst.Render.Width = rc.Width
		}
		if rc.Height > 0 {
			dst.Render.Height = rc.Height
		}
		if rc.FullReloadMS != 0 {
			dst.Render.FullReloadMS = rc.FullReloadMS
		}
		if rc.UpdateMS != 0 {
			dst.Render.UpdateMS = rc.UpdateMS
		}
		if rc.ConcurrentLoads != 0 {
			dst.Render.ConcurrentLoads = rc.ConcurrentLoads
		}
	}
	if pc := src.Palette; pc != nil && len(pc.Colors) > 0 {
		dst.Palette.Colors = append([]string(nil), pc.Colors...)
	}
	if lc := src.Logging; lc != nil {
		if lc.Level != "" {
			dst.Logging.Level = lc.Level
		}
		if lc.Format != "" {
			dst.Logging.Format = lc.Format
		}
	}
}
