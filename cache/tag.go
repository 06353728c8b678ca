package cache

import (
	"fmt"
	"sort"
)

// Tag labels cached data for invalidation. A tag has a type and, optionally,
// an entity id. The zero Tag is invalid.
type Tag struct {
	typ    string
	id     string
	entity bool
}

// CollectionTag returns a tag naming every entity of typ.
func CollectionTag(typ string) Tag {
	return Tag{typ: typ}
}

// EntityTag returns a tag naming one entity of typ. The id is formatted with
// fmt.Sprint, so EntityTag("Books", 7) equals EntityTag("Books", "7").
func EntityTag(typ string, id any) Tag {
	return Tag{typ: typ, id: fmt.Sprint(id), entity: true}
}

// Type returns the tag's type component.
func (t Tag) Type() string { return t.typ }

// ID returns the entity id and whether the tag has one.
func (t Tag) ID() (string, bool) { return t.id, t.entity }

// IsCollection reports whether t has no entity id.
func (t Tag) IsCollection() bool { return !t.entity }

// IsZero reports whether t is the zero Tag.
func (t Tag) IsZero() bool { return t.typ == "" && !t.entity }

// String returns "Type" for collection tags and "Type:id" for entity tags.
func (t Tag) String() string {
	if t.entity {
		return t.typ + ":" + t.id
	}
	return t.typ
}

// MarshalText implements encoding.TextMarshaler.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Matches reports whether a cached entry providing t is invalidated by inv.
// Types must be equal. A collection on either side matches any id; two
// entity tags match only when their ids are equal.
func (t Tag) Matches(inv Tag) bool {
	if t.typ != inv.typ {
		return false
	}
	if !inv.entity || !t.entity {
		return true
	}
	return t.id == inv.id
}

func sortTags(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].typ != tags[j].typ {
			return tags[i].typ < tags[j].typ
		}
		if tags[i].entity != tags[j].entity {
			return !tags[i].entity
		}
		return tags[i].id < tags[j].id
	})
}

// uniqueTags returns the deduplicated union of the given tag lists, sorted.
func uniqueTags(lists ...[]Tag) []Tag {
	seen := make(map[Tag]struct{})
	var out []Tag
	for _, list := range lists {
		for _, t := range list {
			if t.IsZero() {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sortTags(out)
	return out
}
