// Package scrape turns fetched page text into a goquery tree and resolves the
// container elements a run iterates over.
package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// singularRoots are container tags treated as a single page-wide root. Only
// the first match is used for these.
var singularRoots = map[string]struct{}{
	"body": {},
}

// Parse builds a queryable tree from page text.
func Parse(text string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// IsSingularRoot reports whether tag uses single-root semantics.
func IsSingularRoot(tag string) bool {
	_, ok := singularRoots[normalizeTag(tag)]
	return ok
}

// ResolveContainers returns the elements named tag in document order. For a
// singular root such as "body" it returns at most the first match. A tag with
// no matches yields an empty slice.
func ResolveContainers(doc *goquery.Document, tag string) []*goquery.Selection {
	if doc == nil {
		return nil
	}
	name := normalizeTag(tag)
	if name == "" {
		return nil
	}
	matches := FindAll(doc.Selection, name)
	if IsSingularRoot(name) && matches.Length() > 1 {
		matches = matches.First()
	}
	out := make([]*goquery.Selection, 0, matches.Length())
	for i := range matches.Nodes {
		out = append(out, matches.Eq(i))
	}
	return out
}

// FindAll returns every descendant of sel whose element name is tag, at any
// depth, in document order. The name is matched literally, not parsed as a
// CSS selector.
func FindAll(sel *goquery.Selection, tag string) *goquery.Selection {
	name := normalizeTag(tag)
	return sel.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == name
	})
}

// PageTitle returns the trimmed text of the document's <title>, or "".
func PageTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(FindAll(doc.Selection, "title").First().Text())
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
