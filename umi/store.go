package umi

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by SequenceStore.Remove when the requested
// sequence is not present in the store.
var ErrNotFound = errors.New("sequence not found in store")

// alphabet is the set of letters SequenceStore composition buckets are kept
// for: the four canonical bases. A wildcard letter (typically 'N', for UID
// tag positions with a dropped base call) is handled separately by widening
// each letter's composition window rather than by being a member of this
// alphabet itself — see Add and Search.
var alphabet = []byte{'A', 'C', 'G', 'T'}

// Hit is a candidate sequence paired with its Hamming distance from a query.
type Hit struct {
	Seq  string
	Dist int
}

// SequenceStore is an approximate set of fixed-length strings, keyed by
// per-letter composition, that answers "which stored strings have Hamming
// distance <= d from this query?" in time proportional to the candidate set
// rather than the full store.
//
// For each alphabet letter c and integer k, composition[c][k] holds every
// stored string containing exactly k occurrences of c. A query's window of
// candidates for letter c is composition[c][k-d .. k+d], since any stored
// string further than d from the query in letter-c count cannot be within
// Hamming distance d overall.
type SequenceStore struct {
	index       map[string]struct{}
	composition map[byte]map[int]map[string]struct{}
}

// NewSequenceStore creates an empty SequenceStore.
func NewSequenceStore() *SequenceStore {
	s := &SequenceStore{
		index:       make(map[string]struct{}),
		composition: make(map[byte]map[int]map[string]struct{}, len(alphabet)),
	}
	for _, c := range alphabet {
		s.composition[c] = make(map[int]map[string]struct{})
	}
	return s
}

func (s *SequenceStore) bucket(letter byte, count int) map[string]struct{} {
	b, ok := s.composition[letter][count]
	if !ok {
		b = make(map[string]struct{})
		s.composition[letter][count] = b
	}
	return b
}

func countLetter(s string, letter byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == letter {
			n++
		}
	}
	return n
}

// Add inserts seq into the store. Add is idempotent: adding a sequence
// already present is a no-op.
//
// If wildcard is non-zero, seq is additionally indexed across a range of
// composition buckets per letter, [count_c(seq), count_c(seq)+count_wildcard(seq)],
// so that a later wildcard-aware Search can still discover seq even though
// the wildcard positions could, in the query, stand for any letter.
func (s *SequenceStore) Add(seq string, wildcard byte) {
	if _, ok := s.index[seq]; ok {
		return
	}
	s.index[seq] = struct{}{}
	if wildcard == 0 {
		for _, c := range alphabet {
			s.bucket(c, countLetter(seq, c))[seq] = struct{}{}
		}
		return
	}
	wilds := countLetter(seq, wildcard)
	for _, c := range alphabet {
		base := countLetter(seq, c)
		for k := base; k <= base+wilds; k++ {
			s.bucket(c, k)[seq] = struct{}{}
		}
	}
}

// Remove deletes seq from the store, returning ErrNotFound if it was not
// present. Remove does not attempt to reconstruct the wildcard range used at
// Add time; it simply scans every bucket a plain Add would have touched and
// every bucket up to the store's current per-letter bucket range, which is
// safe because Discard-from-an-unused-bucket is a no-op.
func (s *SequenceStore) Remove(seq string) error {
	if _, ok := s.index[seq]; !ok {
		return errors.Wrapf(ErrNotFound, "sequence %q", seq)
	}
	delete(s.index, seq)
	for _, c := range alphabet {
		for _, bucket := range s.composition[c] {
			delete(bucket, seq)
		}
	}
	return nil
}

// Discard removes seq if present; unlike Remove it never fails.
func (s *SequenceStore) Discard(seq string) {
	_ = s.Remove(seq)
}

// Contains reports whether seq is present in the store.
func (s *SequenceStore) Contains(seq string) bool {
	_, ok := s.index[seq]
	return ok
}

// Len returns the number of distinct sequences stored.
func (s *SequenceStore) Len() int { return len(s.index) }

// Diff returns the Hamming distance between two equal-length strings. The
// caller is responsible for ensuring a and b have equal length; Diff counts
// over min(len(a), len(b)) positions otherwise.
func (s *SequenceStore) Diff(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// Search returns every stored string within Hamming distance maxDiff of
// query. If raw is true, the result is an unordered list of matching
// sequences (bypassing distance computation and the max_hits truncation); if
// raw is true and maxHits is nonzero, maxHits is ignored. Otherwise results
// are returned as (sequence, distance) pairs sorted by ascending distance and
// truncated to maxHits (0 means unlimited).
//
// wildcard, if nonzero, widens the per-letter composition window by the
// query's count of that letter, matching sequences that were indexed with
// the same wildcard letter at Add time.
func (s *SequenceStore) Search(query string, maxDiff int, maxHits int, raw bool, wildcard byte) []Hit {
	if s.Contains(query) {
		if raw {
			return []Hit{{Seq: query, Dist: 0}}
		}
		return []Hit{{Seq: query, Dist: 0}}
	}
	wilds := 0
	if wildcard != 0 {
		wilds = countLetter(query, wildcard)
	}
	candidateSet := make(map[string]struct{})
	for _, c := range alphabet {
		k := countLetter(query, c)
		lo := k - maxDiff
		if lo < 0 {
			lo = 0
		}
		hi := k + maxDiff + wilds
		for count, bucket := range s.composition[c] {
			if count < lo || count > hi {
				continue
			}
			for cand := range bucket {
				candidateSet[cand] = struct{}{}
			}
		}
	}
	if raw {
		out := make([]Hit, 0, len(candidateSet))
		for cand := range candidateSet {
			out = append(out, Hit{Seq: cand})
		}
		return out
	}
	hits := make([]Hit, 0, len(candidateSet))
	for cand := range candidateSet {
		d := s.Diff(query, cand)
		if d <= maxDiff {
			hits = append(hits, Hit{Seq: cand, Dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Dist < hits[j].Dist })
	if maxHits > 0 && len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	return hits
}

// Find returns the single best match for query within maxDiff, or ok=false
// if no stored sequence qualifies.
func (s *SequenceStore) Find(query string, maxDiff int, wildcard byte) (hit Hit, ok bool) {
	hits := s.Search(query, maxDiff, 1, false, wildcard)
	if len(hits) == 0 || hits[0].Dist > maxDiff {
		return Hit{}, false
	}
	return hits[0], true
}
