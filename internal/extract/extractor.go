package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/scrapdoc/internal/document"
)

// Target is what a run hands to every extractor: the page the content came
// from and the buffer it is appended to.
type Target struct {
	PageURL string
	Buffer  *document.Buffer
}

// Result summarizes one extractor call.
type Result struct {
	Tag string
	// Text is the plain-text form of what was appended, when the extractor
	// has one.
	Text string
	// Blocks is the number of document blocks appended.
	Blocks int
	Images []ImageOutcome
	Done   bool
}

// Extractor converts the elements named tag inside container into document
// blocks appended to t.Buffer. Structural absence yields an empty result, not
// an error; errors abort the run.
type Extractor interface {
	Extract(ctx context.Context, t Target, container *goquery.Selection, tag string) (Result, error)
}

// Registry maps content tag names to extractors.
type Registry map[string]Extractor

// DefaultRegistry wires paragraphs, the given image extractor and
// document-native tables.
func DefaultRegistry(images Extractor) Registry {
	r := Registry{
		"p":     Paragraphs{},
		"table": NativeTables{},
	}
	if images != nil {
		r["img"] = images
	}
	return r
}

// With returns a copy of r with tag mapped to ex.
func (r Registry) With(tag string, ex Extractor) Registry {
	out := make(Registry, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[normalizeTag(tag)] = ex
	return out
}

// Lookup finds the extractor for tag, ignoring case and surrounding space.
func (r Registry) Lookup(tag string) (Extractor, bool) {
	ex, ok := r[normalizeTag(tag)]
	return ex, ok && ex != nil
}

// Dispatch runs the extractor for each tag, in order, against one container.
// Tags without an extractor are skipped. A nil container yields no results.
func Dispatch(ctx context.Context, r Registry, t Target, container *goquery.Selection, tags []string) ([]Result, error) {
	if container == nil || container.Length() == 0 {
		return nil, nil
	}
	var results []Result
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		name := normalizeTag(tag)
		ex, ok := r.Lookup(name)
		if !ok {
			log.Debug().Str("tag", tag).Msg("no extractor for tag; skipping")
			continue
		}
		before := t.Buffer.Len()
		res, err := ex.Extract(ctx, t, container, name)
		res.Tag = name
		res.Blocks = t.Buffer.Len() - before
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
