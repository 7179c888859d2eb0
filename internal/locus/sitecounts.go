// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package locus

import (
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

// BaseCounts tallies observed ACGT bases, indexed by Nt2.
type BaseCounts [4]int

// Add increments the count for nt.
func (c *BaseCounts) Add(nt seq.Nt2) { c[nt&3]++ }

// Sum returns the total count across all four bases.
func (c BaseCounts) Sum() int { return c[0] + c[1] + c[2] + c[3] }

// SiteCounts is the per-column tally spec.md's site_iterator yields: a
// BaseCounts per sample observed at the column, plus the column total.
// Invariant: the sum of every Samples entry equals Total.Sum() (spec.md
// §8's first testable property).
type SiteCounts struct {
	Column  int
	Samples map[popinfo.SampleID]BaseCounts
	Total   BaseCounts
}

// SiteIterator walks an AlnSet's reference columns in order, yielding one
// SiteCounts per column.
type SiteIterator struct {
	s   *AlnSet
	col int
}

// SiteIterator returns a fresh column iterator over s, starting at column 0.
func (s *AlnSet) SiteIterator() *SiteIterator {
	return &SiteIterator{s: s}
}

// Next computes the SiteCounts for the next column, or returns ok=false
// once every column has been visited.
func (it *SiteIterator) Next() (sc SiteCounts, ok bool) {
	if it.col >= it.s.Ref.Length() {
		return SiteCounts{}, false
	}
	col := it.col
	it.col++

	sc = SiteCounts{Column: col, Samples: make(map[popinfo.SampleID]BaseCounts)}
	for i := range it.s.Reads {
		nt, present := it.s.baseAt(i, col)
		if !present {
			continue
		}
		sample := it.s.Reads[i].Sample
		bc := sc.Samples[sample]
		bc.Add(nt)
		sc.Samples[sample] = bc
		sc.Total.Add(nt)
	}
	return sc, true
}
