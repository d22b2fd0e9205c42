package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperifyio/scrapdoc/internal/document"
	"github.com/hyperifyio/scrapdoc/internal/robots"
)

// fixtureSite serves canned responses keyed by absolute URL, so tests can
// use realistic hosts such as example.test without a network.
type fixtureSite struct {
	mu    sync.Mutex
	pages map[string]fixturePage
	hits  map[string]int
}

type fixturePage struct {
	status int
	ctype  string
	body   []byte
}

func newFixtureSite() *fixtureSite {
	return &fixtureSite{pages: map[string]fixturePage{}, hits: map[string]int{}}
}

func (s *fixtureSite) set(url, ctype string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = fixturePage{status: http.StatusOK, ctype: ctype, body: body}
}

func (s *fixtureSite) setStatus(url string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = fixturePage{status: status, ctype: "text/plain", body: []byte(http.StatusText(status))}
}

func (s *fixtureSite) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	p, ok := s.pages[req.URL.String()]
	s.hits[req.URL.String()]++
	s.mu.Unlock()
	if !ok {
		p = fixturePage{status: http.StatusNotFound, ctype: "text/plain", body: []byte("not found")}
	}
	return &http.Response{
		StatusCode:    p.status,
		Status:        http.StatusText(p.status),
		Header:        http.Header{"Content-Type": {p.ctype}},
		Body:          io.NopCloser(bytes.NewReader(p.body)),
		ContentLength: int64(len(p.body)),
		Request:       req,
	}, nil
}

func newTestApp(t *testing.T, site *fixtureSite, mutate func(*Config)) (*App, Config) {
	t.Helper()
	tmp := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(tmp, "output_files")
	cfg.StaticDir = filepath.Join(tmp, "static", "images")
	cfg.MaxAttempts = 1
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.fetcher.HTTPClient = &http.Client{Transport: site}
	return a, cfg
}

const pageURL = "http://example.test/page"

const fixturePageHTML = `<!doctype html>
<html>
  <head><title>Fixture Page</title></head>
  <body>
    <p>First paragraph.</p>
    <p>Second paragraph.</p>
    <table>
      <tr><th>Name</th><th>Qty</th></tr>
      <tr><td>apple</td><td>3</td></tr>
    </table>
  </body>
</html>`

func kinds(b *document.Buffer) []document.Kind {
	var out []document.Kind
	for _, blk := range b.Blocks() {
		out = append(out, blk.Kind)
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	site := newFixtureSite()
	site.set(pageURL, "text/html; charset=utf-8", []byte(fixturePageHTML))
	a, cfg := newTestApp(t, site, nil)

	req, err := ParseRequest(pageURL, "body", "p, table", "demo")
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	rep, err := a.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := filepath.Join(cfg.OutputDir, "demo.pdf")
	if rep.OutputPath != want {
		t.Fatalf("output path %q, want %q", rep.OutputPath, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}

	got := kinds(rep.Document)
	wantKinds := []document.Kind{document.KindParagraph, document.KindTable, document.KindSpacer}
	if len(got) != len(wantKinds) {
		t.Fatalf("blocks %v, want %v", got, wantKinds)
	}
	for i := range got {
		if got[i] != wantKinds[i] {
			t.Fatalf("blocks %v, want %v", got, wantKinds)
		}
	}
	blocks := rep.Document.Blocks()
	if blocks[0].Text != "First paragraph.\nSecond paragraph.\n" {
		t.Fatalf("paragraph text %q", blocks[0].Text)
	}
	if h := blocks[1].Table.Header(); len(h) != 2 || h[0] != "Name" || h[1] != "Qty" {
		t.Fatalf("table header %v", h)
	}
	if rows := blocks[1].Table.Rows(); len(rows) != 1 || rows[0][0] != "apple" || rows[0][1] != "3" {
		t.Fatalf("table rows %v", rows)
	}
	if n := rep.Document.Count(document.KindImage); n != 0 {
		t.Fatalf("expected no image blocks, got %d", n)
	}
	if rep.Containers != 1 || rep.Blocks != 3 {
		t.Fatalf("report containers=%d blocks=%d", rep.Containers, rep.Blocks)
	}
	if !strings.HasPrefix(rep.Text, "Fixture Page\n"+pageURL+"\n\nFirst paragraph.\nSecond paragraph.\n+") {
		t.Fatalf("unexpected text rendering:\n%s", rep.Text)
	}
	if rep.TextPath != "" {
		t.Fatalf("text sidecar written without WriteText")
	}
}

func TestRun_RepeatedRunsDoNotLeak(t *testing.T) {
	site := newFixtureSite()
	site.set(pageURL, "text/html", []byte(`<body><p>alpha</p></body>`))
	a, _ := newTestApp(t, site, nil)
	req := Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"p"}, OutputName: "demo"}

	first, err := a.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	again, err := a.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Blocks != 1 || again.Blocks != 1 {
		t.Fatalf("blocks accumulated across runs: %d then %d", first.Blocks, again.Blocks)
	}
	if first.Text != again.Text {
		t.Fatalf("identical runs differ:\n%s\n---\n%s", first.Text, again.Text)
	}

	site.set(pageURL, "text/html", []byte(`<body><p>beta</p></body>`))
	third, err := a.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if strings.Contains(third.Text, "alpha") {
		t.Fatalf("stale content leaked into later run:\n%s", third.Text)
	}
	if !strings.Contains(third.Text, "beta") {
		t.Fatalf("missing new content:\n%s", third.Text)
	}
	if third.OutputPath != first.OutputPath {
		t.Fatalf("output path changed: %s vs %s", third.OutputPath, first.OutputPath)
	}
	entries, err := os.ReadDir(filepath.Dir(first.OutputPath))
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one overwritten output file, got %d", len(entries))
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestRun_ImagesReportSkips(t *testing.T) {
	site := newFixtureSite()
	site.set(pageURL, "text/html", []byte(`<body>
	  <div class="card"><img src="/img/ok.png"></div>
	  <div class="card"><img src="/img/gone.png"><p>caption</p></div>
	</body>`))
	site.set("http://example.test/img/ok.png", "image/png", testPNG(t))
	a, cfg := newTestApp(t, site, func(c *Config) { c.WriteText = true })

	rep, err := a.Run(context.Background(), Request{
		SourceURL:    pageURL,
		ContainerTag: "div",
		ContentTags:  []string{"img", "p", "video"},
		OutputName:   "cards",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Containers != 2 {
		t.Fatalf("containers=%d, want 2", rep.Containers)
	}
	if len(rep.Images) != 2 || rep.Skipped != 1 {
		t.Fatalf("images=%d skipped=%d", len(rep.Images), rep.Skipped)
	}
	if !rep.Images[0].Embedded || rep.Images[1].Embedded || rep.Images[1].Reason == "" {
		t.Fatalf("unexpected outcomes: %+v", rep.Images)
	}
	if _, err := os.Stat(filepath.Join(cfg.StaticDir, "ok.png")); err != nil {
		t.Fatalf("raw image not stored: %v", err)
	}
	// card 1: image, spacer, empty paragraph; card 2: paragraph.
	got := kinds(rep.Document)
	want := []document.Kind{document.KindImage, document.KindSpacer, document.KindParagraph, document.KindParagraph}
	if len(got) != len(want) {
		t.Fatalf("blocks %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("blocks %v, want %v", got, want)
		}
	}

	txt, err := os.ReadFile(filepath.Join(cfg.OutputDir, "cards.txt"))
	if err != nil {
		t.Fatalf("read text sidecar: %v", err)
	}
	if string(txt) != rep.Text || !strings.Contains(rep.Text, "[image: ok.png]") {
		t.Fatalf("unexpected sidecar:\n%s", txt)
	}
}

func TestRun_TextTablesConfig(t *testing.T) {
	site := newFixtureSite()
	site.set(pageURL, "text/html", []byte(fixturePageHTML))
	a, _ := newTestApp(t, site, func(c *Config) { c.TextTables = true; c.Title = "Custom" })

	rep, err := a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"table"}, OutputName: "grid"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	blocks := rep.Document.Blocks()
	if len(blocks) != 1 || blocks[0].Kind != document.KindParagraph {
		t.Fatalf("expected one paragraph block, got %v", kinds(rep.Document))
	}
	if !strings.Contains(blocks[0].Text, "+======") || !strings.Contains(blocks[0].Text, "apple") {
		t.Fatalf("expected grid text, got:\n%s", blocks[0].Text)
	}
	if rep.Document.Title != "Custom" {
		t.Fatalf("title %q", rep.Document.Title)
	}
}

func TestRun_MissingContainerWritesEmptyDocument(t *testing.T) {
	site := newFixtureSite()
	site.set(pageURL, "text/html", []byte(fixturePageHTML))
	a, _ := newTestApp(t, site, nil)

	rep, err := a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "section", ContentTags: []string{"p"}, OutputName: "empty"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Containers != 0 || rep.Blocks != 0 {
		t.Fatalf("containers=%d blocks=%d", rep.Containers, rep.Blocks)
	}
	if _, err := os.Stat(rep.OutputPath); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
}

func TestRun_PageFetchFailureIsFatal(t *testing.T) {
	site := newFixtureSite()
	site.setStatus(pageURL, http.StatusInternalServerError)
	a, cfg := newTestApp(t, site, nil)

	_, err := a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"p"}, OutputName: "demo"})
	if err == nil || !strings.Contains(err.Error(), "fetch page") {
		t.Fatalf("expected fetch page error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.OutputDir, "demo.pdf")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("no output expected after failed fetch, stat err=%v", statErr)
	}
}

func TestRun_InvalidRequest(t *testing.T) {
	a, _ := newTestApp(t, newFixtureSite(), nil)
	_, err := a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "body", OutputName: "demo"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	_, err = a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"p"}, OutputName: ".."})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad name, got %v", err)
	}
}

func TestRun_CachedPageIsReused(t *testing.T) {
	site := newFixtureSite()
	site.set(pageURL, "text/html", []byte(fixturePageHTML))
	a, cfg := newTestApp(t, site, func(c *Config) { c.CacheDir = filepath.Join(c.OutputDir, "..", "cache") })

	req := Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"p"}, OutputName: "demo"}
	if _, err := a.Run(context.Background(), req); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries, err := os.ReadDir(cfg.CacheDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected cache entries, err=%v", err)
	}
}

func TestNew_CreatesDirectories(t *testing.T) {
	tmp := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(tmp, "a", "out")
	cfg.StaticDir = filepath.Join(tmp, "b", "static")
	if _, err := New(context.Background(), cfg); err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, d := range []string{cfg.OutputDir, cfg.StaticDir} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s, err=%v", d, err)
		}
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = " "
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRun_RespectsRobots(t *testing.T) {
	site := newFixtureSite()
	site.set("http://example.test/robots.txt", "text/plain", []byte("User-agent: *\nDisallow: /private\nDisallow: /img/blocked\n"))
	site.set(pageURL, "text/html", []byte(`<body><img src="/img/blocked.png"><img src="/img/ok.png"></body>`))
	site.set("http://example.test/img/ok.png", "image/png", testPNG(t))
	site.set("http://example.test/img/blocked.png", "image/png", testPNG(t))
	site.set("http://example.test/private", "text/html", []byte(`<body><p>secret</p></body>`))
	a, _ := newTestApp(t, site, func(c *Config) { c.RespectRobots = true })

	rep, err := a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"img"}, OutputName: "polite"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Skipped != 1 || !strings.Contains(rep.Images[0].Reason, "robots.txt") || !rep.Images[1].Embedded {
		t.Fatalf("unexpected outcomes: %+v", rep.Images)
	}
	site.mu.Lock()
	blockedHits := site.hits["http://example.test/img/blocked.png"]
	robotsHits := site.hits["http://example.test/robots.txt"]
	site.mu.Unlock()
	if blockedHits != 0 {
		t.Fatalf("disallowed image was fetched")
	}
	if robotsHits != 1 {
		t.Fatalf("robots.txt fetched %d times, want 1", robotsHits)
	}

	_, err = a.Run(context.Background(), Request{SourceURL: "http://example.test/private", ContainerTag: "body", ContentTags: []string{"p"}, OutputName: "secret"})
	if !errors.Is(err, robots.ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
}

func TestRun_NonHTMLContentTypeStillParsed(t *testing.T) {
	for _, ct := range []string{"text/plain; charset=utf-8", "application/xml", "application/octet-stream"} {
		site := newFixtureSite()
		site.set(pageURL, ct, []byte(fixturePageHTML))
		a, cfg := newTestApp(t, site, func(c *Config) { c.WriteText = true })

		rep, err := a.Run(context.Background(), Request{SourceURL: pageURL, ContainerTag: "body", ContentTags: []string{"p", "table"}, OutputName: "plain"})
		if err != nil {
			t.Fatalf("%s: run: %v", ct, err)
		}
		if rep.Blocks != 3 || rep.Document.Count(document.KindTable) != 1 {
			t.Fatalf("%s: blocks=%d kinds=%v", ct, rep.Blocks, kinds(rep.Document))
		}
		for _, p := range []string{filepath.Join(cfg.OutputDir, "plain.pdf"), filepath.Join(cfg.OutputDir, "plain.txt")} {
			if _, err := os.Stat(p); err != nil {
				t.Fatalf("%s: expected %s: %v", ct, p, err)
			}
		}
	}
}

func TestNew_CacheBypassReachesFetcher(t *testing.T) {
	a, _ := newTestApp(t, newFixtureSite(), func(c *Config) {
		c.CacheDir = filepath.Join(c.OutputDir, "..", "cache")
		c.CacheBypass = true
	})
	if a.fetcher.Cache == nil || !a.fetcher.BypassCache {
		t.Fatalf("cache bypass not wired: cache=%v bypass=%v", a.fetcher.Cache, a.fetcher.BypassCache)
	}
	if !a.Config().CacheBypass {
		t.Fatalf("Config() lost CacheBypass")
	}
}

func TestNew_CanceledContext(t *testing.T) {
	tmp := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(tmp, "out")
	cfg.StaticDir = filepath.Join(tmp, "static")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(ctx, cfg); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
