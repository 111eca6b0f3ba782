package umi

import (
	"context"
	"time"

	"github.com/grailbio/base/log"

	"github.com/grailbio/uidconsensus/encoding/fastq"
	"github.com/grailbio/uidconsensus/internal/checksum"
	"github.com/grailbio/uidconsensus/internal/idcache"
)

// Stats accumulates run-level counters for a Clustering, partitioned into
// [short, long] pairs by whether a read's payload exceeds the short/long
// boundary implied by ReadLength (when supplied). Index 0 is short, index 1
// is long.
type Stats struct {
	// ReadLength is the original read length, used only to classify reads as
	// short or long for the partitioned counters below. Zero means unset, in
	// which case every read is classified as long.
	ReadLength int

	// TotalSkipped counts reads whose cluster Update returned false (UID
	// length mismatch, too different, too short, too long against a
	// multi-read consensus, or longer than a size-1 cluster's payload, which
	// that read then replaces).
	TotalSkipped [2]int
	// TotalMerged counts reads successfully folded into a cluster found via
	// approximate UID search (as opposed to an exact nameid match).
	TotalMerged [2]int
	// TotalFixed counts reads whose UID required approximate resolution
	// (cache hit or a fresh MergeTarget search), whether or not the
	// subsequent Update succeeded.
	TotalFixed [2]int
	// SingleCount counts clusters currently of size 1, incrementally
	// maintained: incremented when a singleton is created, decremented when
	// it grows to size 2.
	SingleCount [2]int

	startTime  time.Time
	batchStart time.Time
}

func boolIndex(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Clustering owns the UID -> Consensus map and the GroupedSequenceStore used
// to find approximate UID matches, plus a cache of previously resolved
// near-matches and an incrementally maintained size ranking.
type Clustering struct {
	centres map[string]*Consensus
	store   *GroupedSequenceStore
	idMap   *idcache.Cache
	ranking *ClusterRanking
	stats   Stats
}

// NewClustering creates an empty Clustering. idLength is the UID length (the
// store's key length is 2*idLength); prefix and threshold parameterise the
// underlying GroupedSequenceStore as in spec §4.3.
func NewClustering(idLength, prefix, threshold, readLength int) *Clustering {
	now := time.Now()
	return &Clustering{
		centres: make(map[string]*Consensus),
		store:   NewGroupedSequenceStore(prefix, threshold, 'N'),
		idMap:   idcache.New(),
		ranking: NewClusterRanking(),
		stats: Stats{
			ReadLength: readLength,
			startTime:  now,
			batchStart: now,
		},
	}
}

// Stats returns the run's accumulated statistics.
func (c *Clustering) Stats() Stats { return c.stats }

// Len returns the number of distinct clusters.
func (c *Clustering) Len() int { return len(c.centres) }

// Get returns the cluster keyed by uid, if any.
func (c *Clustering) Get(uid string) (*Consensus, bool) {
	v, ok := c.centres[uid]
	return v, ok
}

// Centres exposes the underlying UID -> Consensus map. The returned map
// aliases Clustering's internal storage and must not be mutated.
func (c *Clustering) Centres() map[string]*Consensus { return c.centres }

// Ranking returns the size-ordered index of live clusters.
func (c *Clustering) Ranking() *ClusterRanking { return c.ranking }

// FailCount returns the number of UIDs that could never be routed to a shard
// because their prefix contained the wildcard letter and no exact match was
// found for them.
func (c *Clustering) FailCount() int { return c.store.WildTags().Len() }

// Add registers a brand new cluster centre for uid, keyed by uid's sequence.
func (c *Clustering) Add(uid, payload *QualSeq) {
	nameid := string(uid.Seq())
	c.centres[nameid] = NewConsensus(uid, payload)
	c.store.Add(nameid)
	c.ranking.Add(nameid, 1)
}

// filterCandidates keeps only candidates whose current payload length
// matches readSeq's and whose payload is not grossly different from
// readSeq, then returns their Hamming distance from pattern, discarding any
// exceeding threshold.
func (c *Clustering) filterCandidates(pattern string, candidates []Hit, readSeq *QualSeq, threshold int) []Hit {
	out := make([]Hit, 0, len(candidates))
	for _, cand := range candidates {
		centre, ok := c.centres[cand.Seq]
		if !ok {
			continue
		}
		if centre.Payload().Len() != readSeq.Len() {
			continue
		}
		if grossly, err := centre.Payload().GrosslyDifferent(readSeq, grossPrefixLen, grossTolerance); err == nil && grossly {
			continue
		}
		d := hammingString(pattern, cand.Seq)
		if d > threshold {
			continue
		}
		out = append(out, Hit{Seq: cand.Seq, Dist: d})
	}
	return out
}

// MergeTarget finds the best existing cluster uid can approximately join.
// If no candidate satisfies threshold, MergeTarget creates a brand new
// cluster for uid itself and returns "". Otherwise it returns the matched
// cluster's key; it does not itself call Update — the caller does that.
func (c *Clustering) MergeTarget(uid, readSeq *QualSeq, threshold int) string {
	nameid := string(uid.Seq())
	raw := c.store.Search(nameid, 100, true)
	candidates := c.filterCandidates(nameid, raw, readSeq, threshold)
	if len(candidates) == 0 {
		c.Add(uid, readSeq)
		return ""
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Dist < best.Dist {
			best = cand
		}
	}
	return best.Seq
}

// FromFASTQ streams a FASTQ file, extracting a UID and payload from each
// read's sequence/quality lines by fixed offset (spec §4.5), and returns a
// populated Clustering.
func FromFASTQ(ctx context.Context, path string, idLength int, adapter string, threshold, prefix, readLength int, corrector *SnapCorrector) (*Clustering, error) {
	adaptLength := idLength + len(adapter)
	maxShort := 0
	if readLength > 0 {
		maxShort = readLength - idLength - len(adapter)
	}

	r, closeFn, err := fastq.OpenReader(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeFn() }()

	cl := NewClustering(idLength, prefix, threshold, readLength)
	scanner := fastq.NewScanner(r, fastq.Seq|fastq.Qual)
	var rec fastq.Read
	lineCount := 0
	for scanner.Scan(&rec) {
		lineCount += 4
		if log.At(log.Debug) && lineCount > 0 && lineCount%10000 == 0 {
			cl.LogProgress(lineCount)
		}

		seqLine, qualLine := rec.Seq, rec.Qual
		if len(seqLine) < adaptLength*2 || len(qualLine) < adaptLength*2 {
			log.Error.Printf("%s: record at line %d shorter than 2*(id_length+len(adapter)), skipping", path, lineCount-1)
			continue
		}
		nameid := seqLine[:idLength] + seqLine[len(seqLine)-idLength:]
		payloadSeq := seqLine[adaptLength : len(seqLine)-adaptLength]
		qnameid := qualLine[:idLength] + qualLine[len(qualLine)-idLength:]
		payloadQual := qualLine[adaptLength : len(qualLine)-adaptLength]

		if corrector != nil {
			if corrected, _, ok := corrector.CorrectUMI(nameid); ok {
				if log.At(log.Debug) {
					corrector.Diagnose(nameid)
				}
				nameid = corrected
			}
		}

		uid, err := NewQualSeq([]byte(nameid), []byte(qnameid), "")
		if err != nil {
			log.Error.Printf("%s: %v", path, err)
			continue
		}
		read, err := NewQualSeq([]byte(payloadSeq), []byte(payloadQual), path)
		if err != nil {
			log.Error.Printf("%s: %v", path, err)
			continue
		}

		isLong := boolIndex(len(payloadSeq) > maxShort)

		var (
			similar   string
			idMatched bool
		)
		if cached, ok := cl.idMap.Get(nameid); ok {
			similar = cached
			cl.stats.TotalFixed[isLong]++
		} else if _, ok := cl.centres[nameid]; ok {
			similar = nameid
			idMatched = true
		} else {
			similar = cl.MergeTarget(uid, read, threshold)
			if similar != "" {
				cl.idMap.Set(nameid, similar)
				cl.stats.TotalFixed[isLong]++
			}
		}

		if similar == "" {
			cl.stats.SingleCount[isLong]++
			continue
		}

		centre := cl.centres[similar]
		if centre.Update(uid, read, 1, nil, true) {
			if !idMatched {
				cl.stats.TotalMerged[isLong]++
			}
			if centre.Size() == 2 {
				cl.stats.SingleCount[isLong]--
			}
			cl.ranking.Add(similar, centre.Size())
		} else {
			cl.stats.TotalSkipped[isLong]++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cl, nil
}

// LogProgress logs the same running totals as the original implementation's
// log_progress, at DEBUG level: cluster/singleton/corrupted-UID counts and
// throughput since the last checkpoint.
func (c *Clustering) LogProgress(lineCount int) {
	checkpoint := time.Now()
	totalTime := checkpoint.Sub(c.stats.startTime)
	batchTime := checkpoint.Sub(c.stats.batchStart)
	c.stats.batchStart = checkpoint

	reads := lineCount / 4
	singletons := c.stats.SingleCount[0] + c.stats.SingleCount[1]
	fails := c.FailCount()

	log.Debug.Printf("reads: %d, clusters: %d, singletons: %d (%.1f%%), corrupted UIDs: %d (%.2f%%)",
		reads, c.Len(), singletons, pct(singletons, c.Len()), fails, pct(fails, reads))
	if c.stats.ReadLength > 0 {
		log.Debug.Printf("singletons (short/long): %d %d", c.stats.SingleCount[0], c.stats.SingleCount[1])
	}
	fixed := c.stats.TotalFixed[0] + c.stats.TotalFixed[1]
	merged := c.stats.TotalMerged[0] + c.stats.TotalMerged[1]
	skipped := c.stats.TotalSkipped[0] + c.stats.TotalSkipped[1]
	log.Debug.Printf("similar UIDs: %d (%.1f%%), UIDs merged: %d (%.1f%%), merge failures: %d (%.1f%%)",
		fixed, pct(fixed, reads), merged, pct(merged, reads), skipped, pct(skipped, reads))
	if c.stats.ReadLength > 0 {
		log.Debug.Printf("similar UIDs (short/long): %d %d", c.stats.TotalFixed[0], c.stats.TotalFixed[1])
		log.Debug.Printf("merged UIDs (short/long): %d %d", c.stats.TotalMerged[0], c.stats.TotalMerged[1])
		log.Debug.Printf("merge failures (short/long): %d %d", c.stats.TotalSkipped[0], c.stats.TotalSkipped[1])
	}
	rate := 0.0
	if totalTime > 0 {
		rate = float64(reads) / totalTime.Seconds()
	}
	log.Debug.Printf("total time: %s, increment: %s, rate: %.1f reads/s", totalTime, batchTime, rate)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100.0
}

// Write serialises every cluster centre to path as FASTQ (spec §4.4/§6), and
// returns a hex-encoded HighwayHash digest of the bytes written so a caller
// can log a content fingerprint for the run. No ordering over clusters is
// required or guaranteed.
func (c *Clustering) Write(ctx context.Context, path string) (digest string, err error) {
	w, closeFn, err := fastq.CreateWriter(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			digest, err = "", cerr
		}
	}()

	cw, err := checksum.NewWriter(w)
	if err != nil {
		return "", err
	}

	writer := fastq.NewWriter(cw)
	for _, centre := range c.centres {
		header, seq, sep, qual := centre.FASTQRecord()
		if err := writer.Write(&fastq.Read{ID: header, Seq: seq, Unk: sep, Qual: qual}); err != nil {
			return "", err
		}
	}
	return cw.Sum(), nil
}
