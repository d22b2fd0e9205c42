package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	pdfExt  = ".pdf"
	textExt = ".txt"
)

// outputPaths returns the document and text sidecar paths for name under dir.
// Only the final path element of name is used so a request cannot write
// outside dir; a trailing ".pdf" is dropped to avoid "demo.pdf.pdf".
func outputPaths(dir, name string) (string, string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if strings.EqualFold(filepath.Ext(base), pdfExt) {
		base = base[:len(base)-len(pdfExt)]
	}
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", "", fmt.Errorf("%w: output name %q", ErrInvalidRequest, name)
	}
	return filepath.Join(dir, base+pdfExt), filepath.Join(dir, base+textExt), nil
}

// ensureDirs creates each directory, and its parents, when missing.
func ensureDirs(dirs ...string) error {
	for _, d := range dirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}
