package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
)

// SettingSource represents where a setting's value comes from.
type SettingSource string

const (
	SourceEnv     SettingSource = "env"
	SourceFile    SettingSource = "file"
	SourceDefault SettingSource = "default"
)

// SettingStatus describes one effective setting.
type SettingStatus struct {
	Key    string        `json:"key"`
	Value  string        `json:"value"`
	Source SettingSource `json:"source"`
	EnvVar string        `json:"env_var"`
}

// Sources reports the effective value and origin of the settings that
// change rendering or serving behavior.
func Sources(cfg *Config) []SettingStatus {
	def := Default()
	return []SettingStatus{
		checkSetting("api.host", cfg.API.Host, def.API.Host),
		checkSetting("api.port", cfg.API.Port, def.API.Port),
		checkSetting("api.cors_origins", cfg.API.CORSOrigins, def.API.CORSOrigins),
		checkSetting("render.engine", cfg.Render.Engine, def.Render.Engine),
		checkSetting("render.width", cfg.Render.Width, def.Render.Width),
		checkSetting("render.height", cfg.Render.Height, def.Render.Height),
		checkSetting("render.full_reload_ms", cfg.Render.FullReloadMS, def.Render.FullReloadMS),
		checkSetting("render.update_ms", cfg.Render.UpdateMS, def.Render.UpdateMS),
		checkSetting("render.concurrent_loads", cfg.Render.ConcurrentLoads, def.Render.ConcurrentLoads),
		checkSetting("palette.colors", cfg.Palette.Colors, def.Palette.Colors),
		checkSetting("logging.level", cfg.Logging.Level, def.Logging.Level),
		checkSetting("logging.format", cfg.Logging.Format, def.Logging.Format),
	}
}

// EnvVar returns the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// checkSetting decides where a value came from: a set environment variable
// wins, then any difference from the default is attributed to the file.
func checkSetting(key string, value, def any) SettingStatus {
	status := SettingStatus{
		Key:    key,
		Value:  formatValue(value),
		EnvVar: EnvVar(key),
	}

	switch {
	case os.Getenv(status.EnvVar) != "":
		status.Source = SourceEnv
	case !reflect.DeepEqual(value, def):
		status.Source = SourceFile
	default:
		status.Source = SourceDefault
	}
	return status
}

func formatValue(v any) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(v)
}
