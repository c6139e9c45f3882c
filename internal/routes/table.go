// Package routes holds the router's dispatch table: an ordered list of
// {prefix, destination} pairs evaluated first-match-wins. The order is
// derived, not declared: rules are sorted most-specific-first so precedence
// is a property of the data structure rather than of handler registration
// order.
package routes

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"maitred/internal/config"
)

// Kind is the destination class of a route rule.
type Kind int

const (
	// KindUpstream forwards to a network upstream, path verbatim.
	KindUpstream Kind = iota
	// KindDocs serves a filesystem root with a fixed fallback document.
	KindDocs
	// KindStatic serves a filesystem root, no fallback, no listing.
	KindStatic
	// KindMedia serves a filesystem root with directory listing enabled.
	KindMedia
	// KindSPA serves a filesystem root, falling back to the index document
	// for any path that does not name an existing file.
	KindSPA
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "backend"
	case KindDocs:
		return "docs"
	case KindStatic:
		return "static"
	case KindMedia:
		return "media"
	case KindSPA:
		return "spa"
	}
	return "unknown"
}

// Destination is a tagged variant: either a network upstream (Target set) or
// a filesystem root (Root set), depending on Kind.
type Destination struct {
	Kind     Kind
	Target   *url.URL
	Root     string
	Fallback string
	Browse   bool
}

// Rule matches request paths by prefix and names where they go.
type Rule struct {
	Prefix string
	Dest   Destination
}

// Table is the immutable, ordered rule set. Built once at startup; the
// router holds it for its whole lifetime.
type Table struct {
	rules []Rule
}

// NewTable validates the rules and fixes their evaluation order:
// longest prefix first, lexical tiebreak for equal lengths. Duplicate
// prefixes are rejected because first-match-wins would silently shadow one
// of them.
func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("route table must not be empty")
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("duplicate route prefix %q", r.Prefix)
		}
		seen[r.Prefix] = true

		if r.Dest.Kind == KindUpstream {
			if r.Dest.Target == nil {
				return nil, fmt.Errorf("route %q: upstream destination has no target", r.Prefix)
			}
		} else if r.Dest.Root == "" {
			return nil, fmt.Errorf("route %q: filesystem destination has no root", r.Prefix)
		}
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i].Prefix) != len(ordered[j].Prefix) {
			return len(ordered[i].Prefix) > len(ordered[j].Prefix)
		}
		return ordered[i].Prefix < ordered[j].Prefix
	})

	return &Table{rules: ordered}, nil
}

// Match returns the first rule whose prefix matches path.
func (t *Table) Match(path string) (Rule, bool) {
	for _, r := range t.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return Rule{}, false
}

// Rules returns the table in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// FromConfig builds the table from the configured prefix->class map and the
// configured destination roots. Unknown classes were already rejected by
// config validation, but the table re-checks so it cannot be constructed in
// an undefined state.
func FromConfig(cfg *config.Config) (*Table, error) {
	var backend *url.URL
	if cfg.Upstream.Backend != "" {
		u, err := url.Parse(cfg.Upstream.Backend)
		if err != nil {
			return nil, fmt.Errorf("invalid backend upstream URL: %w", err)
		}
		backend = u
	}

	rules := make([]Rule, 0, len(cfg.Routes))
	for prefix, class := range cfg.Routes {
		var dest Destination
		switch class {
		case "backend":
			if backend == nil {
				return nil, fmt.Errorf("route %q targets backend but no upstream is configured", prefix)
			}
			dest = Destination{Kind: KindUpstream, Target: backend}
		case "docs":
			dest = Destination{Kind: KindDocs, Root: cfg.Paths.DocsRoot, Fallback: "redoc.html"}
		case "static":
			dest = Destination{Kind: KindStatic, Root: cfg.StaticRoot()}
		case "media":
			dest = Destination{Kind: KindMedia, Root: cfg.Paths.MediaRoot, Browse: true}
		case "spa":
			dest = Destination{Kind: KindSPA, Root: cfg.Paths.SPARoot, Fallback: "index.html"}
		default:
			return nil, fmt.Errorf("route %q has unknown destination class %q", prefix, class)
		}
		rules = append(rules, Rule{Prefix: prefix, Dest: dest})
	}

	return NewTable(rules)
}
