// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package locus

import (
	"github.com/biogo/hts/sam"
	"github.com/biogo/store/interval"
	"github.com/pkg/errors"

	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

// ErrCigarLengthMismatch is returned by a finalizing operation when a read's
// CIGAR reference-consumed length does not equal the set's reference
// length, violating spec.md's LocAlnSet invariant.
var ErrCigarLengthMismatch = errors.New("locus: cigar reference length does not match alignment set reference length")

// AlnSet is spec.md's LocAlnSet: a reference contig plus the reads aligned
// against it, indexed by sample. The driver owns exactly one AlnSet per
// locus (spec.md §3's ownership rule).
type AlnSet struct {
	LocusID int
	Ref     seq.DNASeq4
	Reads   []AlnRead

	bySample map[popinfo.SampleID][]int
	cols     [][]int16 // memoized per-read column map, built lazily by colMap

	tree      interval.IntTree // per-read aligned-span index, built lazily by ensureTree
	treeBuilt bool
}

// readSpan indexes one read's aligned reference span [start, end) into the
// AlnSet's interval tree, so the phaser can ask "which reads cover column
// c" without scanning every read's CIGAR.
type readSpan struct {
	uid        uintptr
	start, end int
}

func (r readSpan) ID() uintptr { return r.uid }
func (r readSpan) Range() interval.IntRange {
	return interval.IntRange{Start: r.start, End: r.end}
}
func (r readSpan) Overlap(b interval.IntRange) bool {
	return r.start < b.End && b.Start < r.end
}

// ensureTree (re)builds the span index from colMap if it has gone stale.
func (s *AlnSet) ensureTree() {
	if s.treeBuilt {
		return
	}
	s.tree = interval.IntTree{}
	for i := range s.Reads {
		m := s.colMap(i)
		start, end, any := 0, 0, false
		for col, qi := range m {
			if qi < 0 {
				continue
			}
			if !any {
				start = col
				any = true
			}
			end = col + 1
		}
		if !any {
			continue
		}
		if err := s.tree.Insert(readSpan{uid: uintptr(i), start: start, end: end}, true); err != nil {
			// uid is the read's own index, so duplicate-key insertion (the
			// only documented failure mode) cannot happen here.
			panic(err)
		}
	}
	s.tree.AdjustRanges()
	s.treeBuilt = true
}

// ReadsCovering returns the indices of every read with at least one base
// aligned to reference column col.
func (s *AlnSet) ReadsCovering(col int) []int {
	s.ensureTree()
	hits := s.tree.Get(readSpan{start: col, end: col + 1})
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, int(h.(readSpan).uid))
	}
	return out
}

// NewAlnSet returns an AlnSet for locusID with the given reference contig.
func NewAlnSet(locusID int, ref seq.DNASeq4) *AlnSet {
	return &AlnSet{LocusID: locusID, Ref: ref, bySample: make(map[popinfo.SampleID][]int)}
}

// Add appends r to the set and returns its index. It does not validate the
// CIGAR's reference-consumed length; callers that need the invariant
// checked should call Validate once all reads are added.
func (s *AlnSet) Add(r AlnRead) int {
	idx := len(s.Reads)
	s.Reads = append(s.Reads, r)
	s.bySample[r.Sample] = append(s.bySample[r.Sample], idx)
	s.cols = nil // invalidate memoized column maps
	s.treeBuilt = false
	return idx
}

// SampleReads returns the indices of every read tagged with sample.
func (s *AlnSet) SampleReads(sample popinfo.SampleID) []int {
	return s.bySample[sample]
}

// Validate checks that every read's CIGAR reference-consumed length equals
// Ref's length.
func (s *AlnSet) Validate() error {
	refLen := s.Ref.Length()
	for i := range s.Reads {
		if refConsumed(s.Reads[i].Cigar) != refLen {
			return errors.Wrapf(ErrCigarLengthMismatch, "read %s", s.Reads[i].ID)
		}
	}
	return nil
}

func refConsumed(c sam.Cigar) int {
	n := 0
	for _, op := range c {
		if consumesRef(op.Type()) {
			n += op.Len()
		}
	}
	return n
}

// consumesRef and consumesQuery classify the four CIGAR op types this
// engine produces and consumes: M (match/mismatch), I (insertion in the
// read), D (deletion in the read), S (soft clip).
func consumesRef(t sam.CigarOpType) bool {
	switch t {
	case sam.CigarMatch, sam.CigarDeletion, sam.CigarEqual, sam.CigarMismatch, sam.CigarSkipped:
		return true
	default:
		return false
	}
}

func consumesQuery(t sam.CigarOpType) bool {
	switch t {
	case sam.CigarMatch, sam.CigarInsertion, sam.CigarSoftClipped, sam.CigarEqual, sam.CigarMismatch:
		return true
	default:
		return false
	}
}

// colMap returns a slice of length Ref.Length(), giving for each reference
// column the index into the read's Seq aligned there, or -1 if no base of
// the read is aligned to that column (soft-clipped, inserted, or a
// reference-side deletion).
func (s *AlnSet) colMap(i int) []int16 {
	if s.cols == nil {
		s.cols = make([][]int16, len(s.Reads))
	}
	if s.cols[i] != nil {
		return s.cols[i]
	}
	refLen := s.Ref.Length()
	m := make([]int16, refLen)
	for j := range m {
		m[j] = -1
	}
	refPos, queryPos := 0, 0
	for _, op := range s.Reads[i].Cigar {
		t, n := op.Type(), op.Len()
		cr, cq := consumesRef(t), consumesQuery(t)
		for k := 0; k < n; k++ {
			if cr && refPos < refLen {
				if cq {
					m[refPos] = int16(queryPos)
				}
				refPos++
			}
			if cq {
				queryPos++
			}
		}
	}
	s.cols[i] = m
	return m
}

// baseAt returns the Nt2 base a read contributes at reference column col,
// and whether it contributed one at all (false for N, gap, or no coverage).
func (s *AlnSet) baseAt(readIdx, col int) (seq.Nt2, bool) {
	m := s.colMap(readIdx)
	qi := m[col]
	if qi < 0 {
		return 0, false
	}
	nt4 := s.Reads[readIdx].Seq.At(int(qi))
	if !nt4.IsACGT() {
		return 0, false
	}
	return nt4.AsNt2(), true
}

// BaseAt is the exported form of baseAt, used by the phaser to read the
// base a specific read contributes at a reference column without exposing
// the column-map representation itself.
func (s *AlnSet) BaseAt(readIdx, col int) (seq.Nt2, bool) {
	return s.baseAt(readIdx, col)
}
