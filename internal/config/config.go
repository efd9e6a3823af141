// Package config handles configuration loading for gaugeviz.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GAUGEVIZ_RENDER_ENGINE.
const EnvPrefix = "GAUGEVIZ"

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"     yaml:"api"     json:"api"`
	Render  RenderConfig  `mapstructure:"render"  yaml:"render"  json:"render"`
	Palette PaletteConfig `mapstructure:"palette" yaml:"palette" json:"palette"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	file string
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// RenderConfig holds chart engine settings shared by every gauge.
type RenderConfig struct {
	Engine          string `mapstructure:"engine"           yaml:"engine"           json:"engine"` // "svg" or "term"
	Width           int    `mapstructure:"width"            yaml:"width"            json:"width"`
	Height          int    `mapstructure:"height"           yaml:"height"           json:"height"`
	FullReloadMS    int    `mapstructure:"full_reload_ms"   yaml:"full_reload_ms"   json:"full_reload_ms"`
	UpdateMS        int    `mapstructure:"update_ms"        yaml:"update_ms"        json:"update_ms"`
	ConcurrentLoads int    `mapstructure:"concurrent_loads" yaml:"concurrent_loads" json:"concurrent_loads"`
}

// FullReload returns the full-reload transition as a duration.
func (r RenderConfig) FullReload() time.Duration {
	return time.Duration(r.FullReloadMS) * time.Millisecond
}

// Update returns the incremental-update transition as a duration.
func (r RenderConfig) Update() time.Duration {
	return time.Duration(r.UpdateMS) * time.Millisecond
}

// PaletteConfig holds the default series swatch.
type PaletteConfig struct {
	Colors []string `mapstructure:"colors" yaml:"colors" json:"colors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.gaugeviz/config.yaml (home directory)
//  3. /etc/gaugeviz/config.yaml (system)
//
// Environment variables override config file values.
// Format: GAUGEVIZ_<SECTION>_<KEY>, e.g., GAUGEVIZ_RENDER_ENGINE
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".gaugeviz"))
	v.AddConfigPath("/etc/gaugeviz")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in defaults without consulting files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Render defaults
	v.SetDefault("render.engine", "svg")
	v.SetDefault("render.width", 300)
	v.SetDefault("render.height", 180)
	v.SetDefault("render.full_reload_ms", 350)
	v.SetDefault("render.update_ms", 300)
	v.SetDefault("render.concurrent_loads", 4)

	// Palette defaults
	v.SetDefault("palette.colors", []string{
		"#00bbde", "#fe6672", "#eeb058", "#8a8ad6", "#ff855c",
		"#00cfbb", "#5a9eed", "#73d483", "#c879bb", "#0099b6",
	})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Render.Engine) {
	case "svg", "term":
	default:
		errs = append(errs, fmt.Errorf("render.engine: unknown engine %q", c.Render.Engine))
	}
	if c.Render.FullReloadMS < 0 {
		errs = append(errs, fmt.Errorf("render.full_reload_ms: must not be negative, got %d", c.Render.FullReloadMS))
	}
	if c.Render.UpdateMS < 0 {
		errs = append(errs, fmt.Errorf("render.update_ms: must not be negative, got %d", c.Render.UpdateMS))
	}
	if c.Render.ConcurrentLoads < 1 {
		errs = append(errs, fmt.Errorf("render.concurrent_loads: must be at least 1, got %d", c.Render.ConcurrentLoads))
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port: out of range: %d", c.API.Port))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// File returns the config file the configuration was read from, or "".
func (c *Config) File() string {
	return c.file
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
