package umi

import "github.com/grailbio/base/log"

// MergeSmallClusters attempts to fold clusters no larger than mergeSize into
// larger "target" clusters (size in (mergeSize, mergeTarget]), and failing
// that into other still-unmerged small clusters, mutating cl in place:
// every cluster absorbed by another is removed from cl so that a subsequent
// Clustering.Write call emits each surviving cluster exactly once. Clusters
// larger than mergeTarget are left untouched and are never considered as
// merge inputs.
//
// Either mergeSize or mergeTarget being <= 0 disables the pass entirely (it
// returns 0 without visiting any cluster), mirroring the original's
// merge_size/merge_target guard.
func MergeSmallClusters(cl *Clustering, mergeSize, mergeTarget, idTolerance int) int {
	if mergeSize <= 0 || mergeTarget <= 0 {
		return 0
	}

	var (
		candidates []string
		targets    []string
		mergeCount int
		seen       int
	)

	for uid := range cl.centres {
		seen++
		if log.At(log.Debug) && seen%10000 == 0 {
			log.Debug.Printf("clusters: %d, merged: %d, small: %d, targets: %d", seen, mergeCount, len(candidates), len(targets))
		}

		c, ok := cl.centres[uid]
		if !ok {
			// Already absorbed as a candidate/target by an earlier step.
			continue
		}

		switch {
		case c.Size() <= mergeSize:
			merged := false
			for _, t := range targets {
				target := cl.centres[t]
				if target.Merge(c, idTolerance) {
					merged = true
					mergeCount++
					delete(cl.centres, uid)
					cl.ranking.Add(t, target.Size())
					break
				}
			}
			if merged {
				continue
			}

			removeAt := -1
			for i, cand := range candidates {
				other := cl.centres[cand]
				if c.Merge(other, idTolerance) {
					merged = true
					mergeCount++
					removeAt = i
					delete(cl.centres, cand)
					cl.ranking.Add(uid, c.Size())
					break
				}
			}
			if merged {
				candidates = append(candidates[:removeAt], candidates[removeAt+1:]...)
				if c.Size() > mergeSize {
					targets = append(targets, uid)
				} else {
					candidates = append(candidates, uid)
				}
			} else {
				candidates = append(candidates, uid)
			}

		case c.Size() <= mergeTarget:
			targets = append(targets, uid)
			remaining := candidates[:0:0]
			for _, cand := range candidates {
				other := cl.centres[cand]
				if c.Merge(other, idTolerance) {
					mergeCount++
					delete(cl.centres, cand)
					cl.ranking.Add(uid, c.Size())
				} else {
					remaining = append(remaining, cand)
				}
			}
			candidates = remaining

		default:
			// size > mergeTarget: written as-is, never a merge input.
		}
	}

	return mergeCount
}
