package source

import (
	"sort"
	"strings"
)

// Adapters groups the capabilities a source may provide. Any of the three
// slots may be nil; a missing capability is a normal lookup miss, not a
// fault.
type Adapters struct {
	Email   EmailCreator
	Harvest HarvestMarker
	Fetch   Fetcher
}

type entry struct {
	source   Source
	adapters Adapters
}

// Registry resolves a source name (case- and alias-insensitive) or a URL (by
// domain substring, most specific claim wins) to its adapters. The table is
// built once and never mutated afterwards.
type Registry struct {
	byName  map[string]*entry
	entries []*entry
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

// Register adds a source and its adapters under its slug, name and aliases.
// Later registrations of the same key overwrite earlier ones.
func (r *Registry) Register(src Source, adapters Adapters) {
	e := &entry{source: src, adapters: adapters}
	for _, key := range append([]string{src.Slug, src.Name}, src.Aliases...) {
		key = normalizeName(key)
		if key == "" {
			continue
		}
		r.byName[key] = e
	}
	r.entries = append(r.entries, e)
}

// ByName resolves a source by slug, display name or alias. The second return
// is false when no source claims the name.
func (r *Registry) ByName(name string) (Source, Adapters, bool) {
	e, ok := r.byName[normalizeName(name)]
	if !ok {
		return Source{}, Adapters{}, false
	}
	return e.source, e.adapters, true
}

// EmailCreatorFor resolves the email creation adapter of a named source.
func (r *Registry) EmailCreatorFor(name string) (EmailCreator, bool) {
	_, adapters, ok := r.ByName(name)
	if !ok || adapters.Email == nil {
		return nil, false
	}
	return adapters.Email, true
}

// FetcherFor resolves the enrichment fetch adapter claiming the URL. When
// several sources claim overlapping domains the longest matching claim wins.
func (r *Registry) FetcherFor(url string) (Fetcher, bool) {
	src, ok := r.sourceForURL(url)
	if !ok || src.adapters.Fetch == nil {
		return nil, false
	}
	return src.adapters.Fetch, true
}

// SourceForURL resolves the source claiming the URL, regardless of adapters.
func (r *Registry) SourceForURL(url string) (Source, bool) {
	e, ok := r.sourceForURL(url)
	if !ok {
		return Source{}, false
	}
	return e.source, true
}

func (r *Registry) sourceForURL(url string) (*entry, bool) {
	url = strings.ToLower(strings.TrimSpace(url))
	if url == "" {
		return nil, false
	}

	type claim struct {
		domain string
		e      *entry
	}
	var claims []claim
	for _, e := range r.entries {
		for _, d := range e.source.Domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" && strings.Contains(url, d) {
				claims = append(claims, claim{domain: d, e: e})
			}
		}
	}
	if len(claims) == 0 {
		return nil, false
	}
	sort.SliceStable(claims, func(i, j int) bool {
		return len(claims[i].domain) > len(claims[j].domain)
	})
	return claims[0].e, true
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
