package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"

	"github.com/hyperifyio/scrapdoc/internal/cache"
)

// DefaultMaxBodyBytes caps how much of a single response is read.
const DefaultMaxBodyBytes = 32 << 20

// StatusError reports a non-2xx response. 5xx responses are retried.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// ErrContentType is returned by Get when a page is not served as HTML.
var ErrContentType = errors.New("unsupported content type")

// Client wraps http.Client with per-request timeouts, bounded retry on
// transient errors and an optional on-disk cache. Calls are synchronous.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// RetryInterval is the first backoff interval. Zero means 200ms.
	RetryInterval time.Duration
	// PerRequestTimeout bounds each attempt. Zero leaves only the context.
	PerRequestTimeout time.Duration
	// MaxBodyBytes limits response size. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	Cache        *cache.HTTPCache
	// BypassCache skips conditional headers but still stores responses.
	BypassCache bool
	// RedirectMaxHops caps redirect following. Zero means 5.
	RedirectMaxHops int
}

// Get fetches an HTML page. Responses that are not text/html or
// application/xhtml+xml fail with ErrContentType.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	return c.get(ctx, rawURL, isAllowedHTMLContentType)
}

// GetBytes fetches any resource, such as an image, without content-type gating.
func (c *Client) GetBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	return c.get(ctx, rawURL, nil)
}

// FetchText fetches a page and returns it decoded to UTF-8 using the charset
// from the Content-Type header or the document's meta tags. Any 2xx body is
// accepted regardless of its declared media type.
func (c *Client) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, contentType, err := c.get(ctx, rawURL, nil)
	if err != nil {
		return "", err
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(text), nil
}

func (c *Client) get(ctx context.Context, rawURL string, accept func(string) bool) ([]byte, string, error) {
	var etag, lastMod string
	if c.Cache != nil && !c.BypassCache {
		if meta, err := c.Cache.LoadMeta(ctx, rawURL); err == nil && meta != nil {
			etag = meta.ETag
			lastMod = meta.LastModified
		}
	}

	var (
		body        []byte
		contentType string
	)
	op := func() error {
		res, err := c.tryOnce(ctx, rawURL, etag, lastMod)
		if err != nil {
			if isTransient(err) {
				log.Debug().Err(err).Str("url", rawURL).Msg("transient fetch error; retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		if res.status == http.StatusNotModified {
			if c.Cache != nil {
				if cached, cerr := c.Cache.LoadBody(ctx, rawURL); cerr == nil {
					body = cached
					contentType = res.contentType
					if meta, merr := c.Cache.LoadMeta(ctx, rawURL); merr == nil && contentType == "" {
						contentType = meta.ContentType
					}
					return nil
				}
			}
			// Validators were sent but the cached body is gone; refetch unconditionally.
			res, err = c.tryOnce(ctx, rawURL, "", "")
			if err != nil {
				if isTransient(err) {
					return err
				}
				return backoff.Permanent(err)
			}
		}
		body = res.body
		contentType = res.contentType
		if c.Cache != nil {
			if err := c.Cache.Save(ctx, rawURL, res.contentType, res.etag, res.lastModified, res.body); err != nil {
				log.Debug().Err(err).Str("url", rawURL).Msg("cache save failed")
			}
		}
		return nil
	}

	if err := backoff.Retry(op, c.backoff(ctx)); err != nil {
		return nil, "", err
	}
	if accept != nil && !accept(contentType) {
		return nil, "", fmt.Errorf("%w: %s", ErrContentType, contentType)
	}
	return body, contentType, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 200 * time.Millisecond
	}
	b.MaxInterval = 10 * b.InitialInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

type response struct {
	body         []byte
	contentType  string
	etag         string
	lastModified string
	status       int
}

func (c *Client) tryOnce(ctx context.Context, rawURL, etag, lastMod string) (response, error) {
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.PerRequestTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("new request: %w", err)
	}
	if !isHTTPScheme(req.URL) {
		return response{}, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	res := response{
		contentType:  resp.Header.Get("Content-Type"),
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
		status:       resp.StatusCode,
	}
	if resp.StatusCode == http.StatusNotModified {
		return res, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{}, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		return response{}, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	res.body = b
	return res, nil
}

func (c *Client) httpClient() *http.Client {
	base := http.Client{}
	if c.HTTPClient != nil {
		// Copy so the redirect policy never leaks into the caller's client.
		base = *c.HTTPClient
	}
	base.CheckRedirect = c.checkRedirectFunc()
	return &base
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 && se.Code <= 599
	}
	return false
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if ct == "" {
		return true
	}
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
