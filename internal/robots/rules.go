// Package robots parses robots.txt files and decides whether a URL may be
// fetched by a given user agent.
package robots

import (
	"bufio"
	"strconv"
	"strings"
	"time"
)

// Rules is a parsed robots.txt file.
type Rules struct {
	Groups []Group
}

// Group is one User-agent block.
type Group struct {
	Agents     []string
	Allow      []string
	Disallow   []string
	CrawlDelay time.Duration
}

func (g Group) empty() bool {
	return len(g.Agents) == 0 && len(g.Allow) == 0 && len(g.Disallow) == 0 && g.CrawlDelay == 0
}

func (g Group) hasDirectives() bool {
	return len(g.Allow) > 0 || len(g.Disallow) > 0 || g.CrawlDelay > 0
}

// Parse reads robots.txt text. Unknown directives and malformed lines are
// ignored. Consecutive User-agent lines share one group.
func Parse(text string) Rules {
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rules Rules
	var cur Group
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			if cur.hasDirectives() {
				rules.Groups = append(rules.Groups, cur)
				cur = Group{}
			}
			cur.Agents = append(cur.Agents, strings.ToLower(val))
		case "allow":
			cur.Allow = append(cur.Allow, val)
		case "disallow":
			cur.Disallow = append(cur.Disallow, val)
		case "crawl-delay", "crawldelay":
			if secs, err := strconv.ParseFloat(val, 64); err == nil && secs > 0 {
				cur.CrawlDelay = time.Duration(secs * float64(time.Second))
			}
		}
	}
	if !cur.empty() {
		rules.Groups = append(rules.Groups, cur)
	}
	return rules
}

// IsAllowed reports whether path (which may carry a query string) may be
// fetched by userAgent. The most specific agent group applies; within it the
// longest matching pattern wins and Allow wins ties. No match means allowed.
func (r Rules) IsAllowed(userAgent, path string) bool {
	g, ok := r.group(userAgent)
	if !ok {
		return true
	}
	best := -1
	allowed := true
	consider := func(patterns []string, allow bool) {
		for _, p := range patterns {
			if p == "" || !matches(p, path) {
				continue
			}
			score := specificity(p)
			if score > best || (score == best && allow && !allowed) {
				best = score
				allowed = allow
			}
		}
	}
	consider(g.Disallow, false)
	consider(g.Allow, true)
	return allowed
}

// CrawlDelay returns the delay requested for userAgent, or zero.
func (r Rules) CrawlDelay(userAgent string) time.Duration {
	if g, ok := r.group(userAgent); ok {
		return g.CrawlDelay
	}
	return 0
}

// group picks the group whose agent token is the longest substring of
// userAgent. "*" matches anything but loses to every named token; ties keep
// the first group.
func (r Rules) group(userAgent string) (Group, bool) {
	ua := strings.ToLower(userAgent)
	idx, best := -1, -1
	for i, g := range r.Groups {
		for _, a := range g.Agents {
			score := -1
			switch {
			case a == "*":
				score = 0
			case a != "" && strings.Contains(ua, a):
				score = len(a)
			}
			if score > best {
				idx, best = i, score
			}
		}
	}
	if idx < 0 {
		return Group{}, false
	}
	return r.Groups[idx], true
}

// matches applies a robots pattern anchored at the path start. '*' matches
// any run of characters and a trailing '$' anchors the end.
func matches(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	parts := strings.Split(strings.TrimSuffix(pattern, "$"), "*")
	rest, ok := strings.CutPrefix(path, parts[0])
	if !ok {
		return false
	}
	if len(parts) == 1 {
		return !anchored || rest == ""
	}
	// Leftmost match for each middle literal leaves the most room for the rest.
	last := len(parts) - 1
	for _, lit := range parts[1:last] {
		i := strings.Index(rest, lit)
		if i < 0 {
			return false
		}
		rest = rest[i+len(lit):]
	}
	if anchored {
		return strings.HasSuffix(rest, parts[last])
	}
	return strings.Contains(rest, parts[last])
}

func specificity(pattern string) int {
	return len(strings.ReplaceAll(strings.TrimSuffix(pattern, "$"), "*", ""))
}
