package app

import "time"

// Config holds runtime configuration for the application.
type Config struct {
	// Output
	OutputDir string
	StaticDir string
	Title     string
	WriteText bool

	// Fetching
	UserAgent     string
	Timeout       time.Duration
	MaxAttempts   int
	RespectRobots bool

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheBypass      bool
	CacheStrictPerms bool

	// Extraction
	ImageWidthMM float64
	TextTables   bool

	// Behavior
	Verbose   bool
	ServeAddr string
}

const (
	defaultOutputDir   = "output_files"
	defaultStaticDir   = "static/images"
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultServeAddr   = "127.0.0.1:8080"
	// maxImageWidthMM is the printable width of an A4 page with default margins.
	maxImageWidthMM = 190.0
)

// DefaultConfig returns the built-in defaults that config files, environment
// and flags are layered on top of.
func DefaultConfig() Config {
	return Config{
		OutputDir:    defaultOutputDir,
		StaticDir:    defaultStaticDir,
		UserAgent:    DefaultUserAgent(),
		Timeout:      defaultTimeout,
		MaxAttempts:  defaultMaxAttempts,
		ImageWidthMM: 50.8,
		ServeAddr:    defaultServeAddr,
	}
}
