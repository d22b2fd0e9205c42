package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadEnvFiles_LoadsKeyValues(t *testing.T) {
	t.Setenv("FOO", "")
	t.Setenv("BAR", "")
	t.Setenv("BAZ", "")

	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "\n# sample dotenv file\nFOO=alpha\nexport BAR='beta gamma'\nBAZ=\"a=b\"\nmalformed line\n=novalue\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	if err := LoadEnvFiles(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	for k, want := range map[string]string{"FOO": "alpha", "BAR": "beta gamma", "BAZ": "a=b"} {
		if got := os.Getenv(k); got != want {
			t.Fatalf("%s=%q, want %q", k, got, want)
		}
	}
}

// Later files override earlier ones when loading multiple dotenv files.
func TestLoadEnvFiles_OverrideOrder(t *testing.T) {
	t.Setenv("K", "")
	dir := t.TempDir()
	a := filepath.Join(dir, ".env.a")
	b := filepath.Join(dir, ".env.b")
	if err := os.WriteFile(a, []byte("K=first\n"), 0o600); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(b, []byte("K=second\n"), 0o600); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if err := LoadEnvFiles(a, b); err != nil {
		t.Fatalf("LoadEnvFiles error: %v", err)
	}
	if got := os.Getenv("K"); got != "second" {
		t.Fatalf("override order failed: got %q, want second", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SCRAPDOC_OUTPUT_DIR", "/tmp/out")
	t.Setenv("SCRAPDOC_STATIC_DIR", "")
	t.Setenv("SCRAPDOC_TIMEOUT", "7s")
	t.Setenv("SCRAPDOC_CACHE_MAX_AGE", "bogus")
	t.Setenv("SCRAPDOC_MAX_ATTEMPTS", "5")
	t.Setenv("SCRAPDOC_IMAGE_WIDTH_MM", "80.5")
	t.Setenv("SCRAPDOC_TEXT_TABLES", "yes")
	t.Setenv("SCRAPDOC_WRITE_TEXT", "off")
	t.Setenv("SCRAPDOC_ADDR", ":9090")
	t.Setenv("SCRAPDOC_CACHE_BYPASS", "true")

	cfg := DefaultConfig()
	cfg.WriteText = true
	ApplyEnvOverrides(&cfg)

	if cfg.OutputDir != "/tmp/out" {
		t.Fatalf("OutputDir=%q", cfg.OutputDir)
	}
	if cfg.StaticDir != defaultStaticDir {
		t.Fatalf("empty env must not override StaticDir, got %q", cfg.StaticDir)
	}
	if cfg.Timeout != 7*time.Second {
		t.Fatalf("Timeout=%v", cfg.Timeout)
	}
	if cfg.CacheMaxAge != 0 {
		t.Fatalf("invalid duration must be ignored, got %v", cfg.CacheMaxAge)
	}
	if cfg.MaxAttempts != 5 || cfg.ImageWidthMM != 80.5 {
		t.Fatalf("MaxAttempts=%d ImageWidthMM=%v", cfg.MaxAttempts, cfg.ImageWidthMM)
	}
	if !cfg.TextTables || cfg.WriteText {
		t.Fatalf("TextTables=%v WriteText=%v", cfg.TextTables, cfg.WriteText)
	}
	if cfg.ServeAddr != ":9090" {
		t.Fatalf("ServeAddr=%q", cfg.ServeAddr)
	}
	if !cfg.CacheBypass {
		t.Fatalf("CacheBypass not set from env")
	}
}
