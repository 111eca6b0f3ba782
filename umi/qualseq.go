package umi

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrLengthMismatch is returned when a sequence and its quality string, or
// two sequences expected to share a length, do not.
var ErrLengthMismatch = errors.New("length mismatch")

// ErrShortSequence is returned by GrosslyDifferent when either sequence is
// shorter than the comparison prefix.
var ErrShortSequence = errors.New("sequence shorter than comparison prefix")

// QualSeq pairs a nucleotide sequence with its per-base quality string. The
// two byte slices always have equal length; Seq and Qual may be replaced
// wholesale, but only with equal-length values.
type QualSeq struct {
	seq  []byte
	qual []byte
	name string
}

// NewQualSeq constructs a QualSeq from seq and qual, which must have equal
// length. name is an optional, purely descriptive label.
func NewQualSeq(seq, qual []byte, name string) (*QualSeq, error) {
	if len(seq) != len(qual) {
		return nil, errors.Wrapf(ErrLengthMismatch, "seq has length %d, qual has length %d", len(seq), len(qual))
	}
	return &QualSeq{seq: seq, qual: qual, name: name}, nil
}

// Len returns the length shared by Seq and Qual.
func (q *QualSeq) Len() int { return len(q.seq) }

// Seq returns the nucleotide sequence. The returned slice aliases QualSeq's
// internal storage and must not be retained across a call to SetSeq.
func (q *QualSeq) Seq() []byte { return q.seq }

// Qual returns the quality string, ASCII-encoded Phred scores aligned
// position-for-position with Seq.
func (q *QualSeq) Qual() []byte { return q.qual }

// Name returns the descriptive label supplied at construction, if any.
func (q *QualSeq) Name() string { return q.name }

// SetSeq replaces the nucleotide sequence. s must have the same length as the
// current sequence.
func (q *QualSeq) SetSeq(s []byte) error {
	if len(s) != len(q.seq) {
		return errors.Wrapf(ErrLengthMismatch, "sequence of length %d expected, got length %d", len(q.seq), len(s))
	}
	q.seq = s
	return nil
}

// SetQual replaces the quality string. v must have the same length as the
// current quality string.
func (q *QualSeq) SetQual(v []byte) error {
	if len(v) != len(q.qual) {
		return errors.Wrapf(ErrLengthMismatch, "quality of length %d expected, got length %d", len(q.qual), len(v))
	}
	q.qual = v
	return nil
}

// GrosslyDifferent is a cheap, fast-failing gate that compares the first
// prefixLen bases of q and other and reports whether more than tolerance of
// them disagree. It exists to eliminate obvious cross-molecule collisions
// before the more expensive consensus-merge work below runs.
//
// If either sequence is shorter than prefixLen, GrosslyDifferent returns false
// and ErrShortSequence; it does not log. Callers treat this as "not grossly
// different".
func (q *QualSeq) GrosslyDifferent(other *QualSeq, prefixLen, tolerance int) (bool, error) {
	if q.Len() < prefixLen || other.Len() < prefixLen {
		return false, errors.Wrapf(ErrShortSequence,
			"sequences of length %d and %d compared with prefix %d", q.Len(), other.Len(), prefixLen)
	}
	diff := 0
	for i := 0; i < prefixLen; i++ {
		if q.seq[i] != other.seq[i] {
			diff++
		}
	}
	return diff > tolerance, nil
}

func (q *QualSeq) String() string {
	return fmt.Sprintf("QualSeq(name=%q, seq=%s, qual=%s)", q.name, q.seq, q.qual)
}
