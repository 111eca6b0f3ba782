package umi

import "sort"

// GroupedSequenceStore shards a SequenceStore by a fixed-length prefix,
// bounding the candidate-set size any individual Search must consider and
// routing wildcard-containing keys around the sharding entirely (a key whose
// prefix contains the wildcard letter could belong to any shard, so the
// shard-skip optimisation below would be unsound for it).
type GroupedSequenceStore struct {
	tagSize  int
	stores   map[string]*SequenceStore
	tagDiff  map[string]map[string]int
	wildTags *SequenceStore
	maxDiff  int
	wildcard byte
	length   int
}

// NewGroupedSequenceStore builds a GroupedSequenceStore sharding on a prefix
// of length tagSize. The tagDiff table (all |alphabet|^tagSize prefix pairs
// within maxDiff of each other) is built once here so that Search amortises
// its cost across the whole stream. wildcard, if nonzero, is the letter that
// routes a key to wildTags instead of its shard.
func NewGroupedSequenceStore(tagSize, maxDiff int, wildcard byte) *GroupedSequenceStore {
	g := &GroupedSequenceStore{
		tagSize:  tagSize,
		stores:   make(map[string]*SequenceStore),
		tagDiff:  make(map[string]map[string]int),
		wildTags: NewSequenceStore(),
		maxDiff:  maxDiff,
		wildcard: wildcard,
	}
	tags := allKmers(tagSize, alphabet)
	for _, t := range tags {
		g.stores[t] = NewSequenceStore()
		g.tagDiff[t] = make(map[string]int)
	}
	for _, t := range tags {
		for _, other := range tags {
			d := hammingString(t, other)
			if d <= maxDiff {
				g.tagDiff[t][other] = d
			}
		}
	}
	return g
}

func hammingString(a, b string) int {
	d := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

func (g *GroupedSequenceStore) prefix(seq string) string {
	if len(seq) < g.tagSize {
		return seq
	}
	return seq[:g.tagSize]
}

// Add inserts seq, routing by its prefix.
func (g *GroupedSequenceStore) Add(seq string) {
	if g.Contains(seq) {
		return
	}
	tag := g.prefix(seq)
	if g.wildcard != 0 && containsByte(tag, g.wildcard) {
		g.wildTags.Add(seq, 0)
	} else {
		g.stores[tag].Add(seq[g.tagSize:], g.wildcard)
	}
	g.length++
}

func containsByte(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}

// Remove deletes seq, returning ErrNotFound if it was not present.
func (g *GroupedSequenceStore) Remove(seq string) error {
	tag := g.prefix(seq)
	var err error
	if g.wildcard != 0 && containsByte(tag, g.wildcard) {
		err = g.wildTags.Remove(seq)
	} else {
		err = g.stores[tag].Remove(seq[g.tagSize:])
	}
	if err == nil {
		g.length--
	}
	return err
}

// Discard removes seq if present; it never fails.
func (g *GroupedSequenceStore) Discard(seq string) {
	_ = g.Remove(seq)
}

// Contains reports whether seq is present in the store.
func (g *GroupedSequenceStore) Contains(seq string) bool {
	tag := g.prefix(seq)
	if g.wildcard != 0 && containsByte(tag, g.wildcard) {
		return g.wildTags.Contains(seq)
	}
	return g.stores[tag].Contains(seq[g.tagSize:])
}

// Len returns the total number of sequences stored, across all shards plus
// the wildcard store.
func (g *GroupedSequenceStore) Len() int { return g.length }

// WildTags returns the store of sequences whose prefix contains the wildcard
// letter; these bypass sharding entirely.
func (g *GroupedSequenceStore) WildTags() *SequenceStore { return g.wildTags }

// Search returns approximate matches for query. If the query's prefix
// contains the wildcard letter, only an exact match in wildTags can be
// returned (a wildcard prefix could correspond to any shard, so no
// approximate neighbour search is attempted for it). Otherwise, Search
// iterates every neighbour prefix p' with precomputed Hamming distance
// d_p <= maxDiff from the query's prefix, searches stores[p'] for the
// remaining budget maxDiff-d_p, and prepends p' to each hit while shifting
// its reported distance by d_p.
func (g *GroupedSequenceStore) Search(query string, maxHits int, raw bool) []Hit {
	tag := g.prefix(query)
	tail := query[g.tagSize:]
	if g.wildcard != 0 && containsByte(tag, g.wildcard) {
		if g.wildTags.Contains(query) {
			return []Hit{{Seq: query, Dist: 0}}
		}
		return nil
	}
	if g.stores[tag].Contains(tail) {
		return []Hit{{Seq: query, Dist: 0}}
	}
	seen := make(map[string]struct{})
	var hits []Hit
	for otherTag, tagDiff := range g.tagDiff[tag] {
		budget := g.maxDiff - tagDiff
		sub := g.stores[otherTag].Search(tail, budget, maxHits, raw, g.wildcard)
		for _, h := range sub {
			full := otherTag + h.Seq
			if _, dup := seen[full]; dup {
				continue
			}
			seen[full] = struct{}{}
			hits = append(hits, Hit{Seq: full, Dist: h.Dist + tagDiff})
		}
	}
	if raw {
		return hits
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Dist < hits[j].Dist })
	if maxHits > 0 && len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits
}

// Find returns the single best match for query, or ok=false if none is
// within maxDiff.
func (g *GroupedSequenceStore) Find(query string) (hit Hit, ok bool) {
	hits := g.Search(query, 1, false)
	if len(hits) == 0 || hits[0].Dist > g.maxDiff {
		return Hit{}, false
	}
	return hits[0], true
}
