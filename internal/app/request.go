package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned for a request with a missing field.
var ErrInvalidRequest = errors.New("invalid request")

// Request describes one scrape run.
type Request struct {
	SourceURL    string
	ContainerTag string
	// ContentTags are processed in order for every container. Names without
	// an extractor are skipped.
	ContentTags []string
	// OutputName is the output file name without extension.
	OutputName string
}

// ParseRequest builds a Request from raw form or flag values. tags is a
// comma-separated list; entries are trimmed and blanks dropped.
func ParseRequest(sourceURL, containerTag, tags, outputName string) (Request, error) {
	req := Request{
		SourceURL:    strings.TrimSpace(sourceURL),
		ContainerTag: strings.TrimSpace(containerTag),
		ContentTags:  SplitTags(tags),
		OutputName:   strings.TrimSpace(outputName),
	}
	return req, req.Validate()
}

// SplitTags splits a comma-separated tag list, trimming each entry.
func SplitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks that all four fields are present.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.SourceURL) == "":
		return fmt.Errorf("%w: source url is required", ErrInvalidRequest)
	case strings.TrimSpace(r.ContainerTag) == "":
		return fmt.Errorf("%w: container tag is required", ErrInvalidRequest)
	case len(SplitTags(strings.Join(r.ContentTags, ","))) == 0:
		return fmt.Errorf("%w: at least one content tag is required", ErrInvalidRequest)
	case strings.TrimSpace(r.OutputName) == "":
		return fmt.Errorf("%w: output name is required", ErrInvalidRequest)
	}
	return nil
}
