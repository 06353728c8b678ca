package cache

import "sort"

// TagGraph maps request keys to the tags their entries provide and answers
// which keys an invalidation touches. It performs no I/O and is not safe for
// concurrent use; QueryCache guards it with its own lock.
type TagGraph struct {
	provides map[RequestKey][]Tag
	byType   map[string]map[RequestKey]struct{}
}

// NewTagGraph creates an empty tag graph.
func NewTagGraph() *TagGraph {
	return &TagGraph{
		provides: make(map[RequestKey][]Tag),
		byType:   make(map[string]map[RequestKey]struct{}),
	}
}

// RecordProvides replaces the tags provided by key. Recording no tags removes
// the key.
func (g *TagGraph) RecordProvides(key RequestKey, tags []Tag) {
	g.Remove(key)
	tags = uniqueTags(tags)
	if len(tags) == 0 {
		return
	}
	g.provides[key] = tags
	for _, t := range tags {
		keys, ok := g.byType[t.typ]
		if !ok {
			keys = make(map[RequestKey]struct{})
			g.byType[t.typ] = keys
		}
		keys[key] = struct{}{}
	}
}

// Provided returns the tags recorded for key.
func (g *TagGraph) Provided(key RequestKey) []Tag {
	tags := g.provides[key]
	if len(tags) == 0 {
		return nil
	}
	return append([]Tag(nil), tags...)
}

// Remove forgets key.
func (g *TagGraph) Remove(key RequestKey) {
	for _, t := range g.provides[key] {
		if keys, ok := g.byType[t.typ]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(g.byType, t.typ)
			}
		}
	}
	delete(g.provides, key)
}

// RecordInvalidates returns every key whose provided tags match any of the
// invalidation tags, sorted.
func (g *TagGraph) RecordInvalidates(tags []Tag) []RequestKey {
	hit := make(map[RequestKey]struct{})
	for _, inv := range tags {
		for key := range g.byType[inv.typ] {
			if _, done := hit[key]; done {
				continue
			}
			for _, p := range g.provides[key] {
				if p.Matches(inv) {
					hit[key] = struct{}{}
					break
				}
			}
		}
	}

	keys := make([]RequestKey, 0, len(hit))
	for key := range hit {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of keys with recorded tags.
func (g *TagGraph) Len() int {
	return len(g.provides)
}
