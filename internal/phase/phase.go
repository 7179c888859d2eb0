// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package phase implements the read-backed haplotype phaser: per sample,
// it builds a graph of heterozygous-allele cooccurrences observed across
// reads, resolves it into phase sets, and detects samples whose read
// evidence is self-contradictory.
//
// No repo in the example pack does read-backed phasing, so there is no
// direct precedent for the algorithm itself. The cooccurrence merge uses a
// plain union-find (unionfind.go); the phase-set/consistency check
// (pairgraph.go) is built on gonum/graph/simple.UndirectedGraph with
// graph/topo.ConnectedComponents doing the component pass, the same idiom
// kortschak-ins/cmd/cmpint and kortschak-loopy/cmd/press use for their own
// graphs, with a 2-colouring layered on top of each component since the
// site constraints go beyond plain connectivity.
package phase

import (
	"sort"

	"github.com/grailbio/rystacks/internal/gtmodel"
	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

// eMin is the minimum read-cooccurrence count spec.md requires before two
// (column, allele) observations are linked for phasing. Lighter edges are
// ignored; no debug or visualization graph is built from them.
const eMin = 2

// PhasedHet is one sample's phase call at one heterozygous reference
// column: the two alleles making up that column's diploid genotype,
// grouped under the phase set they belong to.
type PhasedHet struct {
	PhaseSet    int
	Left, Right seq.Nt2
}

// SamplePhase is one sample's phasing outcome for a locus. When
// Consistent is false, Phased is empty and the caller (the driver) must
// blank the sample's calls for the whole locus per spec.md's
// SampleInconsistent handling.
type SamplePhase struct {
	Consistent bool
	Phased     map[int]PhasedHet
}

// allele identifies one (column, nucleotide) observation; the two
// instances sharing a column are the two graph nodes a het site
// contributes.
type allele struct {
	col int
	nt  seq.Nt2
}

// sampleCall looks up sample's SampleCall within a SiteCall, returning
// false if the sample has no call at this site (e.g. zero depth).
func sampleCall(sc gtmodel.SiteCall, sample popinfo.SampleID) (gtmodel.SampleCall, bool) {
	for _, c := range sc.Samples {
		if c.Sample == sample {
			return c, true
		}
	}
	return gtmodel.SampleCall{}, false
}

// Phase computes SamplePhase for every sample in samples, given the
// locus's per-column calls (keyed by reference column, as produced by
// locus.SiteIterator paired with a gtmodel.Model) and its alignment set.
func Phase(calls map[int]gtmodel.SiteCall, s *locus.AlnSet, samples []popinfo.SampleID) map[popinfo.SampleID]SamplePhase {
	out := make(map[popinfo.SampleID]SamplePhase, len(samples))
	for _, sample := range samples {
		out[sample] = phaseSample(calls, s, sample)
	}
	return out
}

func hetColumns(calls map[int]gtmodel.SiteCall, sample popinfo.SampleID) []int {
	var cols []int
	for col, sc := range calls {
		c, ok := sampleCall(sc, sample)
		if !ok || c.Kind != gtmodel.Het {
			continue
		}
		cols = append(cols, col)
	}
	sort.Ints(cols)
	return cols
}

func phaseSample(calls map[int]gtmodel.SiteCall, s *locus.AlnSet, sample popinfo.SampleID) SamplePhase {
	hets := hetColumns(calls, sample)
	if len(hets) == 0 {
		return SamplePhase{Consistent: true, Phased: map[int]PhasedHet{}}
	}
	if len(hets) == 1 {
		col := hets[0]
		c, _ := sampleCall(calls[col], sample)
		return SamplePhase{Consistent: true, Phased: map[int]PhasedHet{
			col: {PhaseSet: col, Left: c.Nt0, Right: c.Nt1},
		}}
	}

	counts := cooccurrence(calls, s, sample, hets)
	uf := newUnionFind()
	for _, col := range hets {
		c, _ := sampleCall(calls[col], sample)
		uf.add(allele{col, c.Nt0})
		uf.add(allele{col, c.Nt1})
	}

	edges := counts.sortedEdges()
	for _, e := range edges {
		if e.weight < eMin {
			continue
		}
		if !uf.union(e.a, e.b) {
			return SamplePhase{Consistent: false}
		}
	}

	pairing := newPairGraph()
	for _, col := range hets {
		c, _ := sampleCall(calls[col], sample)
		pairing.link(uf.find(allele{col, c.Nt0}), uf.find(allele{col, c.Nt1}))
	}

	colors, groupMinCol, ok := pairing.bipartition()
	if !ok {
		return SamplePhase{Consistent: false}
	}

	phased := make(map[int]PhasedHet, len(hets))
	setID := make(map[int]int)
	for _, col := range hets {
		c, _ := sampleCall(calls[col], sample)
		r0, r1 := uf.find(allele{col, c.Nt0}), uf.find(allele{col, c.Nt1})
		left, right := c.Nt0, c.Nt1
		if colors[r0] > colors[r1] {
			left, right = right, left
		}
		// hets is ascending, so the first column seen for a group is its
		// minimum column, the phase-set id.
		key := groupMinCol[r0]
		if _, ok := setID[key]; !ok {
			setID[key] = col
		}
		phased[col] = PhasedHet{PhaseSet: setID[key], Left: left, Right: right}
	}
	return SamplePhase{Consistent: true, Phased: phased}
}

// edgeObs is one observed (allele, allele) cooccurrence and its count.
type edgeObs struct {
	a, b   allele
	weight int
}

type edgeSet struct {
	weights map[[2]allele]int
}

func newEdgeSet() *edgeSet { return &edgeSet{weights: map[[2]allele]int{}} }

func (e *edgeSet) add(a, b allele) {
	if b.col < a.col || (b.col == a.col && b.nt < a.nt) {
		a, b = b, a
	}
	e.weights[[2]allele{a, b}]++
}

func (e *edgeSet) sortedEdges() []edgeObs {
	out := make([]edgeObs, 0, len(e.weights))
	for k, w := range e.weights {
		out = append(out, edgeObs{a: k[0], b: k[1], weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].a != out[j].a {
			return out[i].a.col < out[j].a.col || (out[i].a.col == out[j].a.col && out[i].a.nt < out[j].a.nt)
		}
		return out[i].b.col < out[j].b.col || (out[i].b.col == out[j].b.col && out[i].b.nt < out[j].b.nt)
	})
	return out
}

// cooccurrence scans every read belonging to sample and, for each pair of
// het columns it covers with a called allele, increments that allele
// pair's count. A read's base that isn't one of the site's two called
// alleles is treated as N (dropped) per spec.md §4.6 step 2.
func cooccurrence(calls map[int]gtmodel.SiteCall, s *locus.AlnSet, sample popinfo.SampleID, hets []int) *edgeSet {
	es := newEdgeSet()
	for _, ri := range s.SampleReads(sample) {
		var covered []allele
		for _, col := range hets {
			nt, ok := s.BaseAt(ri, col)
			if !ok {
				continue
			}
			c, _ := sampleCall(calls[col], sample)
			if nt != c.Nt0 && nt != c.Nt1 {
				continue
			}
			covered = append(covered, allele{col, nt})
		}
		for i := 0; i < len(covered); i++ {
			for j := i + 1; j < len(covered); j++ {
				es.add(covered[i], covered[j])
			}
		}
	}
	return es
}
