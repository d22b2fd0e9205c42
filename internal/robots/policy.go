package robots

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/scrapdoc/internal/fetch"
)

// ErrDisallowed is returned for URLs that robots.txt forbids, or whose
// robots.txt could not be read for a reason that means "stay away".
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Getter fetches raw bytes for a URL.
type Getter interface {
	GetBytes(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Policy fetches robots.txt once per origin and answers Check calls. A
// missing robots.txt (404, 410 and other 4xx except 401/403) allows
// everything. 401, 403, 5xx and network errors disallow the origin until the
// entry expires.
type Policy struct {
	Fetcher   Getter
	UserAgent string
	// Expiry bounds how long an origin's rules are reused. Zero means 30m.
	Expiry time.Duration

	mu      sync.Mutex
	origins map[string]entry
	now     func() time.Time
}

type entry struct {
	rules   Rules
	blocked error
	expires time.Time
}

// Check returns nil when rawURL may be fetched and an error wrapping
// ErrDisallowed otherwise. Only context errors are returned unwrapped.
func (p *Policy) Check(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	ent, err := p.lookup(ctx, u)
	if err != nil {
		return err
	}
	if ent.blocked != nil {
		return fmt.Errorf("%w: %s: %v", ErrDisallowed, rawURL, ent.blocked)
	}
	if !ent.rules.IsAllowed(p.UserAgent, u.RequestURI()) {
		return fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
	}
	return nil
}

// CrawlDelay returns the crawl delay for rawURL's origin, fetching its
// rules when needed.
func (p *Policy) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	ent, err := p.lookup(ctx, u)
	if err != nil || ent.blocked != nil {
		return 0
	}
	return ent.rules.CrawlDelay(p.UserAgent)
}

func (p *Policy) lookup(ctx context.Context, u *url.URL) (entry, error) {
	origin := u.Scheme + "://" + u.Host
	now := p.clock()

	p.mu.Lock()
	if p.origins == nil {
		p.origins = make(map[string]entry)
	}
	if ent, ok := p.origins[origin]; ok && now.Before(ent.expires) {
		p.mu.Unlock()
		return ent, nil
	}
	p.mu.Unlock()

	ent := entry{expires: now.Add(p.expiry())}
	body, _, err := p.Fetcher.GetBytes(ctx, origin+"/robots.txt")
	switch {
	case err == nil:
		ent.rules = Parse(string(body))
	case ctx.Err() != nil:
		return entry{}, ctx.Err()
	case isMissing(err):
		log.Debug().Str("origin", origin).Msg("no robots.txt; allowing all")
	default:
		log.Warn().Err(err).Str("origin", origin).Msg("robots.txt unavailable; treating origin as disallowed")
		ent.blocked = err
	}

	p.mu.Lock()
	p.origins[origin] = ent
	p.mu.Unlock()
	return ent, nil
}

func (p *Policy) expiry() time.Duration {
	if p.Expiry > 0 {
		return p.Expiry
	}
	return 30 * time.Minute
}

func (p *Policy) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func isMissing(err error) bool {
	var se *fetch.StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden {
		return false
	}
	return se.Code >= 400 && se.Code <= 499
}

// Guard is a Getter that consults a Policy before every fetch and waits out
// the origin's crawl delay between consecutive fetches.
type Guard struct {
	Getter Getter
	Policy *Policy

	mu   sync.Mutex
	last map[string]time.Time
}

func (g *Guard) GetBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	if err := g.Policy.Check(ctx, rawURL); err != nil {
		return nil, "", err
	}
	if err := g.wait(ctx, rawURL); err != nil {
		return nil, "", err
	}
	return g.Getter.GetBytes(ctx, rawURL)
}

func (g *Guard) wait(ctx context.Context, rawURL string) error {
	delay := g.Policy.CrawlDelay(ctx, rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	origin := u.Scheme + "://" + u.Host

	g.mu.Lock()
	if g.last == nil {
		g.last = make(map[string]time.Time)
	}
	var sleep time.Duration
	if prev, ok := g.last[origin]; ok && delay > 0 {
		sleep = time.Until(prev.Add(delay))
	}
	g.last[origin] = time.Now().Add(max(sleep, 0))
	g.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
