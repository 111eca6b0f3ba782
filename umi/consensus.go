package umi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/log"
)

const (
	// grossPrefixLen and grossTolerance are the fixed parameters of the
	// gross-difference gate used by Consensus.Update (spec: prefix_len=10,
	// tolerance=7).
	grossPrefixLen = 10
	grossTolerance = 7
)

// Consensus is the per-cluster aggregate: a canonical UID QualSeq, the
// current payload consensus, a sparse map of per-position disagreement
// histograms, a member count, and counters for reads rejected for being too
// different, too short, or too long.
type Consensus struct {
	uid     *QualSeq
	payload *QualSeq
	diffs   map[int]map[byte]int
	size    int

	different int
	shorter   int
	longer    int
}

// NewConsensus starts a new cluster of size 1 from a single (uid, payload)
// read. uid's sequence becomes the cluster's fixed canonical UID.
func NewConsensus(uid, payload *QualSeq) *Consensus {
	return &Consensus{
		uid:     uid,
		payload: payload,
		diffs:   make(map[int]map[byte]int),
		size:    1,
	}
}

// UID returns the cluster's canonical UID QualSeq. Its Seq never changes
// after construction; its Qual rises monotonically, element-wise, as reads
// are merged.
func (c *Consensus) UID() *QualSeq { return c.uid }

// Payload returns the cluster's current consensus payload.
func (c *Consensus) Payload() *QualSeq { return c.payload }

// Size returns the number of reads that have contributed to the consensus.
func (c *Consensus) Size() int { return c.size }

// Different, Shorter, and Longer return the counts of reads rejected for
// being grossly different, shorter than the consensus payload, and longer
// than the consensus payload, respectively.
func (c *Consensus) Different() int { return c.different }
func (c *Consensus) Shorter() int   { return c.shorter }
func (c *Consensus) Longer() int    { return c.longer }

// Diffs returns the position -> letter -> count disagreement histogram. The
// returned map aliases Consensus's internal storage and must not be mutated.
func (c *Consensus) Diffs() map[int]map[byte]int { return c.diffs }

func maxByte(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}

// Update merges a newly observed (uid, payload) read into the consensus,
// following spec's §4.4 protocol, and reports whether the merge succeeded.
//
// readSize is the number of reads payload already represents (1 for a single
// freshly-sequenced read, >1 when Update is being driven by Merge to fold in
// an entire other cluster). incomingDiffs, if non-nil, is that other
// cluster's own diffs map, to be folded into c.diffs before the per-position
// merge loop runs (the "merge-of-clusters" case). discard controls whether a
// grossly different or shorter read increments its reject counter, and whether
// a longer read may replace a size-1 cluster's payload; a longer read that
// does not replace the payload is counted in longer whatever discard is.
// Merge passes discard=false.
func (c *Consensus) Update(uid, payload *QualSeq, readSize int, incomingDiffs map[int]map[byte]int, discard bool) bool {
	if uid.Len() != c.uid.Len() {
		log.Error.Printf("UID length mismatch: expected %d, got %d", c.uid.Len(), uid.Len())
		log.Debug.Printf("mismatched UIDs: %q vs %q", c.uid.Seq(), uid.Seq())
		return false
	}

	grossly, err := c.payload.GrosslyDifferent(payload, grossPrefixLen, grossTolerance)
	if err != nil {
		log.Debug.Printf("gross-difference check skipped: %v", err)
	} else if grossly {
		if discard {
			c.different += readSize
		}
		return false
	}

	if payload.Len() < c.payload.Len() {
		if discard {
			c.shorter += readSize
		}
		return false
	}

	if payload.Len() > c.payload.Len() {
		if discard && c.size == 1 {
			c.payload = payload
			c.shorter += readSize
		} else {
			c.longer += readSize
		}
		return false
	}

	// UID quality merge: element-wise max, sequence itself never changes.
	uidQual := c.uid.Qual()
	newUIDQual := uid.Qual()
	mergedUIDQual := make([]byte, len(uidQual))
	for i := range uidQual {
		mergedUIDQual[i] = maxByte(uidQual[i], newUIDQual[i])
	}
	_ = c.uid.SetQual(mergedUIDQual)

	// Fold in a merging cluster's own diffs before the per-position loop, so
	// that the loop's "agree" branch does not double-count positions already
	// seeded here.
	if len(incomingDiffs) > 0 {
		for pos, counts := range incomingDiffs {
			entry, ok := c.diffs[pos]
			if !ok {
				entry = map[byte]int{c.payload.Seq()[pos]: c.size}
				c.diffs[pos] = entry
			}
			for letter, n := range counts {
				entry[letter] += n
			}
		}
	}

	payloadSeq := c.payload.Seq()
	payloadQual := c.payload.Qual()
	newSeq := payload.Seq()
	newQual := payload.Qual()

	mergedSeq := make([]byte, len(payloadSeq))
	mergedQual := make([]byte, len(payloadQual))
	copy(mergedSeq, payloadSeq)
	copy(mergedQual, payloadQual)

	for i := range payloadSeq {
		// (qual, src, nucleotide) triples compared lexicographically, with
		// src=0 for the incoming read and src=1 for the current consensus:
		// the incoming read only wins on strictly higher quality, so ties
		// resolve deterministically in favour of the existing call.
		qWin, nucWin := payloadQual[i], payloadSeq[i]
		if newQual[i] > payloadQual[i] {
			qWin, nucWin = newQual[i], newSeq[i]
		}
		mergedQual[i] = qWin

		if payloadSeq[i] == newSeq[i] {
			if entry, ok := c.diffs[i]; ok {
				if _, seeded := incomingDiffs[i]; !seeded {
					entry[payloadSeq[i]] += readSize
				}
			}
			continue
		}

		if _, seeded := incomingDiffs[i]; !seeded {
			entry, ok := c.diffs[i]
			if !ok {
				entry = map[byte]int{payloadSeq[i]: c.size}
				c.diffs[i] = entry
			}
			entry[newSeq[i]] += readSize
		}
		mergedSeq[i] = nucWin
	}

	_ = c.payload.SetSeq(mergedSeq)
	_ = c.payload.SetQual(mergedQual)

	c.size += readSize
	return true
}

// Merge attempts to fold other into c as a whole-cluster merge: it gates on
// UID gross-difference (at the cluster's full UID length, not the default
// 10-base prefix, and with the caller-supplied tolerance) and, if it passes,
// delegates to Update with discard=false, so that a merge rejected as grossly
// different or shorter leaves c's reject counters unchanged (a longer other
// payload still increments c's longer counter). other is never modified.
func (c *Consensus) Merge(other *Consensus, tolerance int) bool {
	grossly, err := c.uid.GrosslyDifferent(other.uid, c.uid.Len(), tolerance)
	if err == nil && grossly {
		return false
	}
	return c.Update(other.uid, other.payload, other.size, other.diffs, false)
}

// FASTQRecord serializes the consensus to the four FASTQ lines described in
// spec §4.4/§6: header "@<size> <pos><letter><count>...", the concatenated
// UID+payload sequence, a bare "+" separator, and the concatenated UID+payload
// quality.
func (c *Consensus) FASTQRecord() (header, seq, sep, qual string) {
	var b strings.Builder
	b.WriteByte('@')
	fmt.Fprintf(&b, "%d", c.size)

	positions := make([]int, 0, len(c.diffs))
	for p := range c.diffs {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	for _, p := range positions {
		fmt.Fprintf(&b, " %d", p)
		letters := make([]byte, 0, len(c.diffs[p]))
		for l := range c.diffs[p] {
			letters = append(letters, l)
		}
		sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
		for _, l := range letters {
			fmt.Fprintf(&b, "%c%d", l, c.diffs[p][l])
		}
	}
	return b.String(), string(c.uid.Seq()) + string(c.payload.Seq()), "+", string(c.uid.Qual()) + string(c.payload.Qual())
}
