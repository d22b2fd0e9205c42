package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/scrapdoc/internal/cache"
	"github.com/hyperifyio/scrapdoc/internal/document"
	"github.com/hyperifyio/scrapdoc/internal/extract"
	"github.com/hyperifyio/scrapdoc/internal/fetch"
	"github.com/hyperifyio/scrapdoc/internal/robots"
	"github.com/hyperifyio/scrapdoc/internal/scrape"
)

// App runs scrape requests. Runs are serialized; each gets its own document
// buffer.
type App struct {
	cfg      Config
	fetcher  *fetch.Client
	robots   *robots.Policy
	registry extract.Registry
	mu       sync.Mutex
}

// Report summarizes one run.
type Report struct {
	OutputPath string
	// TextPath is empty unless the text sidecar was written.
	TextPath   string
	Containers int
	Blocks     int
	Images     []extract.ImageOutcome
	// Skipped counts images that were not embedded.
	Skipped int
	// Text is the plain-text rendering of the document.
	Text     string
	Document *document.Buffer
}

// New validates cfg, creates the output and static directories and applies
// cache invalidation settings. Cache housekeeping stops when ctx is done.
func New(ctx context.Context, cfg Config) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ensureDirs(cfg.OutputDir, cfg.StaticDir); err != nil {
		return nil, err
	}

	client := &fetch.Client{
		HTTPClient:        newHTTPClient(cfg.Timeout),
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.MaxAttempts,
		PerRequestTimeout: cfg.Timeout,
	}
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			n, err := cache.PurgeByAge(ctx, cfg.CacheDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed")
			} else if n > 0 {
				log.Debug().Int("removed", n).Msg("purged stale cache entries")
			}
		}
		client.Cache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		client.BypassCache = cfg.CacheBypass
	}

	a := &App{cfg: cfg, fetcher: client}
	var imageGetter extract.Getter = client
	if cfg.RespectRobots {
		a.robots = &robots.Policy{Fetcher: client, UserAgent: cfg.UserAgent}
		imageGetter = &robots.Guard{Getter: client, Policy: a.robots}
	}
	images := extract.Images{Fetcher: imageGetter, StaticDir: cfg.StaticDir, WidthMM: cfg.ImageWidthMM}
	a.registry = extract.DefaultRegistry(images)
	if cfg.TextTables {
		a.registry = a.registry.With("table", extract.TextTables{})
	}
	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() Config { return a.cfg }

// Run fetches the page, extracts the requested tags from every container and
// writes the document. Page fetch, parse and write errors fail the run;
// images that cannot be embedded are only reported.
func (a *App) Run(ctx context.Context, req Request) (Report, error) {
	if err := req.Validate(); err != nil {
		return Report{}, err
	}
	pdfPath, textPath, err := outputPaths(a.cfg.OutputDir, req.OutputName)
	if err != nil {
		return Report{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	log.Debug().Str("url", req.SourceURL).Str("container", req.ContainerTag).Strs("tags", req.ContentTags).Msg("scrape started")
	if a.robots != nil {
		if err := a.robots.Check(ctx, req.SourceURL); err != nil {
			return Report{}, fmt.Errorf("fetch page: %w", err)
		}
	}
	text, err := a.fetcher.FetchText(ctx, req.SourceURL)
	if err != nil {
		return Report{}, fmt.Errorf("fetch page: %w", err)
	}
	doc, err := scrape.Parse(text)
	if err != nil {
		return Report{}, err
	}

	title := strings.TrimSpace(a.cfg.Title)
	if title == "" {
		title = scrape.PageTitle(doc)
	}
	buf := document.NewBuffer(title, req.SourceURL)
	target := extract.Target{PageURL: req.SourceURL, Buffer: buf}

	containers := scrape.ResolveContainers(doc, req.ContainerTag)
	rep := Report{Containers: len(containers), Document: buf}
	if len(containers) == 0 {
		log.Warn().Str("url", req.SourceURL).Str("container", req.ContainerTag).Msg("no matching container elements")
	}
	for _, c := range containers {
		results, err := extract.Dispatch(ctx, a.registry, target, c, req.ContentTags)
		for _, r := range results {
			rep.Images = append(rep.Images, r.Images...)
		}
		if err != nil {
			return rep, fmt.Errorf("extract: %w", err)
		}
	}
	for _, img := range rep.Images {
		if !img.Embedded {
			rep.Skipped++
		}
	}

	if err := ensureDirs(a.cfg.OutputDir); err != nil {
		return rep, err
	}
	if err := document.WritePDF(buf, pdfPath); err != nil {
		return rep, err
	}
	rep.OutputPath = pdfPath
	rep.Blocks = buf.Len()
	rep.Text = buf.String()
	log.Info().Str("out", pdfPath).Int("blocks", rep.Blocks).Int("skipped_images", rep.Skipped).Msg("wrote document")

	if a.cfg.WriteText {
		if err := document.WriteText(buf, textPath); err != nil {
			return rep, err
		}
		rep.TextPath = textPath
		log.Info().Str("out", textPath).Msg("wrote text")
	}
	return rep, nil
}
