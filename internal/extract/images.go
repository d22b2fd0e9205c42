package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	// Decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hyperifyio/scrapdoc/internal/scrape"
)

// DefaultImageWidthMM is the display width of embedded images (2 inches).
const DefaultImageWidthMM = 50.8

// ImageOutcome records what happened to one image element.
type ImageOutcome struct {
	Src string
	// URL is the resolved absolute URL, empty when resolution failed.
	URL string
	// File is where the raw bytes were written, empty when not written.
	File     string
	Embedded bool
	Reason   string
}

// Getter fetches raw bytes for a URL.
type Getter interface {
	GetBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Images downloads each matching image, stores the raw bytes under StaticDir
// and embeds a PNG re-encoding in the document, followed by a spacer. A
// failing image is recorded, logged and skipped; only context cancellation
// stops the extractor.
type Images struct {
	Fetcher   Getter
	StaticDir string
	// WidthMM is the display width; zero means DefaultImageWidthMM.
	WidthMM float64
}

var errNoSrc = errors.New("missing src attribute")

func (x Images) Extract(ctx context.Context, t Target, container *goquery.Selection, tag string) (Result, error) {
	res := Result{Tag: tag}
	width := x.WidthMM
	if width <= 0 {
		width = DefaultImageWidthMM
	}
	matches := scrape.FindAll(container, tag)
	for i := range matches.Nodes {
		el := matches.Eq(i)
		src, _ := el.Attr("src")
		out := ImageOutcome{Src: src}
		name, pngBytes, err := x.load(ctx, t.PageURL, src, &out)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			out.Reason = err.Error()
			res.Images = append(res.Images, out)
			log.Warn().Err(err).Str("src", src).Str("url", out.URL).Msg("skipping image")
			continue
		}
		t.Buffer.AddImage(name, pngBytes, width)
		t.Buffer.AddSpacer()
		out.Embedded = true
		res.Images = append(res.Images, out)
	}
	res.Done = true
	return res, nil
}

func (x Images) load(ctx context.Context, pageURL, src string, out *ImageOutcome) (string, []byte, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil, errNoSrc
	}
	abs, err := ResolveURL(pageURL, src)
	if err != nil {
		return "", nil, err
	}
	out.URL = abs.String()
	if x.Fetcher == nil {
		return "", nil, errors.New("no image fetcher configured")
	}
	data, _, err := x.Fetcher.GetBytes(ctx, out.URL)
	if err != nil {
		return "", nil, fmt.Errorf("fetch image: %w", err)
	}

	name := FileName(abs)
	path := filepath.Join(x.StaticDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("store image: %w", err)
	}
	out.File = path

	stored, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read stored image: %w", err)
	}
	encoded, err := ToPNG(stored)
	if err != nil {
		return "", nil, err
	}
	return name, encoded, nil
}

// ResolveURL resolves src against the page URL. An absolute src is returned
// unchanged.
func ResolveURL(pageURL, src string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return nil, fmt.Errorf("parse src: %w", err)
	}
	if ref.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("relative src %q without an absolute page url", src)
	}
	return base.ResolveReference(ref), nil
}

// FileName is the last path segment of u, or "image" when the path ends
// without one.
func FileName(u *url.URL) string {
	p := u.Path
	seg := p[strings.LastIndex(p, "/")+1:]
	seg = strings.TrimSpace(seg)
	if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, filepath.Separator) {
		return "image"
	}
	return seg
}

// ToPNG decodes any supported image format and re-encodes it as 8-bit PNG.
func ToPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
