package umi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qs(t *testing.T, seq, qual string) *QualSeq {
	t.Helper()
	q, err := NewQualSeq([]byte(seq), []byte(qual), "")
	require.NoError(t, err)
	return q
}

func TestConsensusUpdateAgreement(t *testing.T) {
	uid := qs(t, "AAAAAAAA", "IIIIIIII")
	c := NewConsensus(uid, qs(t, "ACGTACGTAC", "IIIIIIIIII"))

	ok := c.Update(qs(t, "AAAAAAAA", "IIIIIIII"), qs(t, "ACGTACGTAC", "HHHHHHHHHH"), 1, nil, true)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, "ACGTACGTAC", string(c.Payload().Seq()))
	assert.Empty(t, c.Diffs(), "agreeing reads must not create diff entries")
}

func TestConsensusUpdateDisagreementSparseDiffs(t *testing.T) {
	uid := qs(t, "AAAAAAAA", "IIIIIIII")
	c := NewConsensus(uid, qs(t, "ACGTACGTAC", "IIIIIIIIII"))

	// Position 3 (0-based) disagrees: consensus has T (qual I=high), incoming
	// has G (qual H=lower) -> existing nucleotide wins, but the disagreement
	// is still tallied.
	ok := c.Update(qs(t, "AAAAAAAA", "IIIIIIII"), qs(t, "ACGGACGTAC", "HHHHHHHHHH"), 1, nil, true)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())

	diffs := c.Diffs()
	require.Contains(t, diffs, 3)
	assert.Equal(t, map[byte]int{'T': 1, 'G': 1}, diffs[3])
	for pos := range diffs {
		if pos != 3 {
			t.Fatalf("unexpected diff position %d", pos)
		}
	}
}

func TestConsensusUpdateRejectsGrossMismatch(t *testing.T) {
	uid := qs(t, "AAAAAAAA", "IIIIIIII")
	c := NewConsensus(uid, qs(t, "ACGTACGTAC", "IIIIIIIIII"))

	ok := c.Update(qs(t, "AAAAAAAA", "IIIIIIII"), qs(t, "TTTTTTTTTT", "IIIIIIIIII"), 1, nil, true)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 1, c.Different())
}

func TestConsensusUpdateRejectsLengthMismatch(t *testing.T) {
	uid := qs(t, "AAAAAAAA", "IIIIIIII")
	c := NewConsensus(uid, qs(t, "ACGTACGTAC", "IIIIIIIIII"))

	ok := c.Update(qs(t, "AAAAAAAA", "IIIIIIII"), qs(t, "ACGTACGT", "IIIIIIII"), 1, nil, true)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Shorter())

	// A longer read against a size-1 cluster replaces its payload and is
	// counted as the now-shorter original, not as longer.
	ok = c.Update(qs(t, "AAAAAAAA", "IIIIIIII"), qs(t, "ACGTACGTACGT", "IIIIIIIIIIII"), 1, nil, true)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Longer())
	assert.Equal(t, 2, c.Shorter())
	assert.Equal(t, "ACGTACGTACGT", string(c.Payload().Seq()))
}

func TestConsensusUpdateRejectsMismatchedUIDLength(t *testing.T) {
	uid := qs(t, "AAAAAAAA", "IIIIIIII")
	c := NewConsensus(uid, qs(t, "ACGTACGTAC", "IIIIIIIIII"))

	ok := c.Update(qs(t, "AAAAAA", "IIIIII"), qs(t, "ACGTACGTAC", "IIIIIIIIII"), 1, nil, true)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestConsensusMergeWholeCluster(t *testing.T) {
	uid1 := qs(t, "AAAAAAAA", "IIIIIIII")
	c1 := NewConsensus(uid1, qs(t, "ACGTACGTAC", "IIIIIIIIII"))

	uid2 := qs(t, "AAAAAAAA", "HHHHHHHH")
	c2 := NewConsensus(uid2, qs(t, "ACGTACGTAC", "HHHHHHHHHH"))

	ok := c1.Merge(c2, 1)
	assert.True(t, ok)
	assert.Equal(t, 2, c1.Size())
	assert.Equal(t, 1, c2.Size(), "the absorbed cluster is left untouched")
}

func TestConsensusFASTQRecord(t *testing.T) {
	uid := qs(t, "AAAA", "IIII")
	c := NewConsensus(uid, qs(t, "ACGT", "IIII"))
	ok := c.Update(qs(t, "AAAA", "IIII"), qs(t, "ACCT", "HHHH"), 1, nil, true)
	require.True(t, ok)

	header, seq, sep, qual := c.FASTQRecord()
	assert.Equal(t, "@2 2C1G1", header)
	assert.Equal(t, "AAAAACGT", seq)
	assert.Equal(t, "+", sep)
	assert.Len(t, qual, len(seq))
}
