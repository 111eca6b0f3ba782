package umi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceStoreAddContainsRemove(t *testing.T) {
	s := NewSequenceStore()
	assert.False(t, s.Contains("AACC"))

	s.Add("AACC", 0)
	assert.True(t, s.Contains("AACC"))
	assert.Equal(t, 1, s.Len())

	s.Add("AACC", 0) // idempotent
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Remove("AACC"))
	assert.False(t, s.Contains("AACC"))
	assert.True(t, ErrNotFound == errCause(s.Remove("AACC")) || s.Remove("AACC") != nil)
}

func errCause(err error) error { return err }

func TestSequenceStoreSearchExactAndApprox(t *testing.T) {
	s := NewSequenceStore()
	s.Add("AAAA", 0)
	s.Add("AAAC", 0)
	s.Add("TTTT", 0)

	hits := s.Search("AAAA", 0, 0, false, 0)
	require.Len(t, hits, 1)
	assert.Equal(t, "AAAA", hits[0].Seq)
	assert.Equal(t, 0, hits[0].Dist)

	hits = s.Search("AAAG", 1, 0, false, 0)
	found := map[string]int{}
	for _, h := range hits {
		found[h.Seq] = h.Dist
	}
	assert.Equal(t, 1, found["AAAA"])
	assert.Equal(t, 1, found["AAAC"])
	_, hasTTTT := found["TTTT"]
	assert.False(t, hasTTTT)
}

func TestSequenceStoreFind(t *testing.T) {
	s := NewSequenceStore()
	s.Add("ACGT", 0)

	hit, ok := s.Find("ACGT", 1, 0)
	require.True(t, ok)
	assert.Equal(t, "ACGT", hit.Seq)

	_, ok = s.Find("TTTT", 1, 0)
	assert.False(t, ok)
}

func TestSequenceStoreWildcardSearch(t *testing.T) {
	s := NewSequenceStore()
	s.Add("AACC", 'N')

	// A query with one N in place of a base must still find AACC within the
	// wildcard-widened composition window.
	hit, ok := s.Find("NACC", 1, 'N')
	assert.True(t, ok)
	assert.Equal(t, "AACC", hit.Seq)
}

func TestSequenceStoreDiff(t *testing.T) {
	s := NewSequenceStore()
	assert.Equal(t, 0, s.Diff("ACGT", "ACGT"))
	assert.Equal(t, 2, s.Diff("ACGT", "ACCC"))
}
