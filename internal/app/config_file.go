package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Durations are strings such as "30s" so YAML and JSON read the same way.
type FileConfig struct {
	OutputDir string `yaml:"outputDir" json:"outputDir"`
	StaticDir string `yaml:"staticDir" json:"staticDir"`
	Title     string `yaml:"title" json:"title"`
	WriteText *bool  `yaml:"writeText" json:"writeText"`

	UserAgent   string `yaml:"userAgent" json:"userAgent"`
	Timeout     string `yaml:"timeout" json:"timeout"`
	MaxAttempts int    `yaml:"maxAttempts" json:"maxAttempts"`
	Robots      *bool  `yaml:"robots" json:"robots"`

	Cache struct {
		Dir         string `yaml:"dir" json:"dir"`
		MaxAge      string `yaml:"maxAge" json:"maxAge"`
		Clear       bool   `yaml:"clear" json:"clear"`
		Bypass      bool   `yaml:"bypass" json:"bypass"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	ImageWidthMM float64 `yaml:"imageWidthMM" json:"imageWidthMM"`
	TextTables   *bool   `yaml:"textTables" json:"textTables"`
	Verbose      bool    `yaml:"verbose" json:"verbose"`

	Serve struct {
		Addr string `yaml:"addr" json:"addr"`
	} `yaml:"serve" json:"serve"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value set in fc onto cfg. It runs before env
// and flags, so those still take precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) error {
	if cfg == nil {
		return nil
	}
	setString := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	setString(&cfg.OutputDir, fc.OutputDir)
	setString(&cfg.StaticDir, fc.StaticDir)
	setString(&cfg.Title, fc.Title)
	setString(&cfg.UserAgent, fc.UserAgent)
	setString(&cfg.CacheDir, fc.Cache.Dir)
	setString(&cfg.ServeAddr, fc.Serve.Addr)

	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("config: timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if fc.Cache.MaxAge != "" {
		d, err := time.ParseDuration(fc.Cache.MaxAge)
		if err != nil {
			return fmt.Errorf("config: cache.maxAge: %w", err)
		}
		cfg.CacheMaxAge = d
	}
	if fc.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.MaxAttempts
	}
	if fc.ImageWidthMM > 0 {
		cfg.ImageWidthMM = fc.ImageWidthMM
	}
	if fc.WriteText != nil {
		cfg.WriteText = *fc.WriteText
	}
	if fc.Robots != nil {
		cfg.RespectRobots = *fc.Robots
	}
	if fc.TextTables != nil {
		cfg.TextTables = *fc.TextTables
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.Bypass {
		cfg.CacheBypass = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
	return nil
}

// ValidateConfig performs minimal validation of required settings and limits.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output directory is required")
	}
	if strings.TrimSpace(cfg.StaticDir) == "" {
		return errors.New("config: static directory is required")
	}
	if cfg.MaxAttempts < 0 || cfg.Timeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.ImageWidthMM < 0 || cfg.ImageWidthMM > maxImageWidthMM {
		return fmt.Errorf("config: imageWidthMM must be between 0 and %.0f", maxImageWidthMM)
	}
	return nil
}
