package umi

import (
	"math"

	"github.com/biogo/store/llrb"
)

// rankEntry is the tree payload for ClusterRanking. key packs the cluster's
// size into the high bits and an insertion sequence number into the low
// bits, so that insertion order breaks ties between equally-sized clusters
// and every key inserted is distinct, mirroring the (refID, start) composite
// key pattern used for shard lookups elsewhere in this codebase.
type rankEntry struct {
	key  int64
	uid  string
	size int
}

// Compare implements llrb.Comparable.
func (e rankEntry) Compare(c llrb.Comparable) int {
	o := c.(rankEntry)
	switch {
	case e.key < o.key:
		return -1
	case e.key > o.key:
		return 1
	default:
		return 0
	}
}

// RankedCluster is one entry of a ClusterRanking.Top result.
type RankedCluster struct {
	UID  string
	Size int
}

// ClusterRanking maintains an ordered index of cluster sizes, letting a
// caller pull the N largest clusters out of a run without sorting the full
// set of clusters on every report. Entries are appended, never updated in
// place; Top filters stale entries against the live size recorded in
// centres.
type ClusterRanking struct {
	tree llrb.Tree
	seq  int64
}

// NewClusterRanking returns an empty ClusterRanking.
func NewClusterRanking() *ClusterRanking {
	return &ClusterRanking{}
}

// Add records uid's current size. Call Add again whenever a cluster's size
// changes; ClusterRanking never removes a stale entry itself, it relies on
// Top to skip it.
func (r *ClusterRanking) Add(uid string, size int) {
	r.seq++
	r.tree.Insert(rankEntry{
		key:  int64(size)<<32 | (r.seq & 0xffffffff),
		uid:  uid,
		size: size,
	})
}

// Top returns up to n of the largest live clusters, largest first. centres
// is consulted to discard entries whose recorded size no longer matches the
// cluster's current size (left behind by an Add that has since been
// superseded by a later one for the same uid).
func (r *ClusterRanking) Top(n int, centres map[string]*Consensus) []RankedCluster {
	var out []RankedCluster
	key := rankEntry{key: math.MaxInt64}
	for len(out) < n {
		found := r.tree.Floor(key)
		if found == nil {
			break
		}
		e := found.(rankEntry)
		if c, ok := centres[e.uid]; ok && c.Size() == e.size {
			out = append(out, RankedCluster{UID: e.uid, Size: e.size})
		}
		if e.key == math.MinInt64 {
			break
		}
		key = rankEntry{key: e.key - 1}
	}
	return out
}
