package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix namespaces every environment variable the application reads.
const EnvPrefix = "SCRAPDOC_"

// ApplyEnvOverrides overrides cfg fields with SCRAPDOC_* environment variables
// when they are set. Env takes precedence over the config file; flags are
// applied afterwards and win over both. Unparsable values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v := strings.TrimSpace(os.Getenv(EnvPrefix + key)); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvPrefix + key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	setString(&cfg.OutputDir, "OUTPUT_DIR")
	setString(&cfg.StaticDir, "STATIC_DIR")
	setString(&cfg.Title, "TITLE")
	setString(&cfg.UserAgent, "USER_AGENT")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.ServeAddr, "ADDR")

	setDuration(&cfg.Timeout, "TIMEOUT")
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")

	if v := strings.TrimSpace(os.Getenv(EnvPrefix + "MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPrefix + "IMAGE_WIDTH_MM")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ImageWidthMM = f
		}
	}

	setBool(&cfg.WriteText, "WRITE_TEXT")
	setBool(&cfg.TextTables, "TEXT_TABLES")
	setBool(&cfg.RespectRobots, "ROBOTS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheBypass, "CACHE_BYPASS")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}
