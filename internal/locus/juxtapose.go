// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package locus

import (
	"github.com/biogo/hts/sam"

	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

// Juxtapose concatenates a and b's reference contigs horizontally,
// separated by an N spacer of spacerLen bases, and returns a new AlnSet
// holding every read from both inputs, each extended to span the combined
// reference: a's reads gain a trailing D covering the spacer and all of
// b's reference; b's reads gain a leading D covering all of a's reference
// and the spacer. This is how the driver combines the forward contig, the
// spacer, and the paired-end contig (spec.md §4.4/§4.7 step 3).
func Juxtapose(a, b *AlnSet, spacerLen int) *AlnSet {
	combinedRef := seq.NewDNASeq4FromText(a.Ref.String())
	spacer := seq.NewDNASeq4(spacerLen)
	appendSeq(&combinedRef, &spacer)
	appendSeq(&combinedRef, &b.Ref)

	out := NewAlnSet(a.LocusID, combinedRef)

	aTail := spacerLen + b.Ref.Length()
	for _, r := range a.Reads {
		cigar := append(sam.Cigar{}, r.Cigar...)
		cigar = appendD(cigar, aTail)
		out.Add(AlnRead{Read: r.Read, Cigar: cigar})
	}

	bHead := a.Ref.Length() + spacerLen
	for _, r := range b.Reads {
		cigar := make(sam.Cigar, 0, len(r.Cigar)+1)
		cigar = appendD(cigar, bHead)
		cigar = append(cigar, r.Cigar...)
		out.Add(AlnRead{Read: r.Read, Cigar: cigar})
	}
	return out
}

// appendSeq appends every base of src to dst in order.
func appendSeq(dst, src *seq.DNASeq4) {
	for i := 0; i < src.Length(); i++ {
		dst.Append(src.At(i))
	}
}

// appendD appends a deletion op of length n to cigar, merging with a
// trailing deletion op if one is already present.
func appendD(cigar sam.Cigar, n int) sam.Cigar {
	if n == 0 {
		return cigar
	}
	if len(cigar) > 0 && cigar[len(cigar)-1].Type() == sam.CigarDeletion {
		last := cigar[len(cigar)-1]
		cigar[len(cigar)-1] = sam.NewCigarOp(sam.CigarDeletion, last.Len()+n)
		return cigar
	}
	return append(cigar, sam.NewCigarOp(sam.CigarDeletion, n))
}

// MergePairedReads combines mates sharing the same template ID into a
// single aligned row spanning both sides of the reference: for each
// template with two or more rows, the merged row's column map takes
// whichever mate covers a column (the forward and paired-end halves are
// disjoint by construction, coming from Juxtapose's N-spacer split); a
// column both mates cover keeps the first mate's base. Templates with a
// single row pass through unchanged.
func (s *AlnSet) MergePairedReads() {
	byTemplate := make(map[string][]int)
	order := make([]string, 0, len(s.Reads))
	for i, r := range s.Reads {
		if _, ok := byTemplate[r.ID]; !ok {
			order = append(order, r.ID)
		}
		byTemplate[r.ID] = append(byTemplate[r.ID], i)
	}

	merged := make([]AlnRead, 0, len(order))
	for _, id := range order {
		idxs := byTemplate[id]
		if len(idxs) == 1 {
			merged = append(merged, s.Reads[idxs[0]])
			continue
		}
		merged = append(merged, s.mergeRows(idxs))
	}

	s.Reads = merged
	s.cols = nil
	s.treeBuilt = false
	s.rebuildIndex()
}

// mergeRows combines the rows at the given indices (sharing a template ID)
// into a single row by overlaying their per-column bases onto a fresh
// DNASeq4 the length of the reference, under a single all-M CIGAR spanning
// the reference. Columns no row covers hold N and so contribute no base.
func (s *AlnSet) mergeRows(idxs []int) AlnRead {
	refLen := s.Ref.Length()
	merged := seq.NewDNASeq4(refLen)
	covered := make([]bool, refLen)
	for _, idx := range idxs {
		m := s.colMap(idx)
		for col, qi := range m {
			if qi < 0 || covered[col] {
				continue
			}
			merged.Set(col, s.Reads[idx].Seq.At(int(qi)))
			covered[col] = true
		}
	}

	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, refLen)}

	base := s.Reads[idxs[0]]
	return AlnRead{
		Read:  Read{ID: base.ID, Seq: merged, Sample: base.Sample},
		Cigar: cigar,
	}
}

// rebuildIndex recomputes bySample from scratch after Reads has been
// replaced wholesale (e.g. by MergePairedReads).
func (s *AlnSet) rebuildIndex() {
	s.bySample = make(map[popinfo.SampleID][]int, len(s.Reads))
	for i, r := range s.Reads {
		s.bySample[r.Sample] = append(s.bySample[r.Sample], i)
	}
}
