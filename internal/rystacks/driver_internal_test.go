// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/rystacks/internal/gtmodel"
	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/rerrors"
	"github.com/grailbio/rystacks/internal/seq"
)

func newTestContext(pop *popinfo.Table) *Context {
	opts := DefaultOpts
	return &Context{Opts: &opts, Pop: pop}
}

func forwardRead(id, text string, sample popinfo.SampleID) locus.Read {
	return locus.Read{ID: id, Seq: seq.NewDNASeq4FromText(text), Sample: sample}
}

func TestProcessLocusMonomorphic(t *testing.T) {
	pop := popinfo.Build(map[string]struct{}{"sampleA": {}})
	sA, _ := pop.Lookup("sampleA")
	c := newTestContext(pop)
	w := newWorker(c.Opts)

	reads := make([]locus.Read, 0, 10)
	for i := 0; i < 10; i++ {
		reads = append(reads, forwardRead("r", "ACGTACGTAC", sA))
	}
	rs := &locus.ReadSet{LocusID: 1, Forward: reads, Pop: pop}

	res, err := processLocus(c, w, rs)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTAC", res.Consensus.String())
	for _, col := range res.Columns {
		assert.Len(t, col.Call.Alleles, 1)
	}
	assert.Empty(t, res.DiscardedSamples)
}

func TestProcessLocusHetSNP(t *testing.T) {
	pop := popinfo.Build(map[string]struct{}{"sampleA": {}})
	sA, _ := pop.Lookup("sampleA")
	c := newTestContext(pop)
	w := newWorker(c.Opts)

	reads := make([]locus.Read, 0, 20)
	for i := 0; i < 10; i++ {
		reads = append(reads, forwardRead("rA", "ACGTACGTAC", sA))
		reads = append(reads, forwardRead("rG", "ACGTGCGTAC", sA))
	}
	rs := &locus.ReadSet{LocusID: 2, Forward: reads, Pop: pop}

	res, err := processLocus(c, w, rs)
	require.NoError(t, err)

	variant := -1
	for i, col := range res.Columns {
		if len(col.Call.Alleles) > 1 {
			variant = i
			break
		}
	}
	require.GreaterOrEqual(t, variant, 0, "expected one variant column")
	assert.Equal(t, 4, res.Columns[variant].Col)
}

func TestProcessLocusNoForwardReadsSkipped(t *testing.T) {
	pop := popinfo.Build(map[string]struct{}{"sampleA": {}})
	c := newTestContext(pop)
	w := newWorker(c.Opts)
	rs := &locus.ReadSet{LocusID: 3, Pop: pop}

	_, err := processLocus(c, w, rs)
	require.Error(t, err)
	skipped, ok := err.(*rerrors.LocusSkipped)
	require.True(t, ok)
	assert.Equal(t, 3, skipped.LocusID)
}

func TestMostFrequentAlleleTiesBreakByNtOrder(t *testing.T) {
	call := gtmodel.SiteCall{Frequencies: map[seq.Nt2]float64{seq.NtA: 0.5, seq.NtC: 0.5}}
	nt, ok := mostFrequentAllele(call)
	require.True(t, ok)
	assert.Equal(t, seq.NtA, nt)
}

func TestMostFrequentAlleleEmpty(t *testing.T) {
	_, ok := mostFrequentAllele(gtmodel.SiteCall{})
	assert.False(t, ok)
}

func TestBlankSampleZeroesCallsAndCounts(t *testing.T) {
	pop := popinfo.Build(map[string]struct{}{"sampleA": {}, "sampleB": {}})
	sA, _ := pop.Lookup("sampleA")
	sB, _ := pop.Lookup("sampleB")
	columns := []columnResult{
		{
			Col: 0,
			Counts: locus.SiteCounts{
				Samples: map[popinfo.SampleID]locus.BaseCounts{sA: {3, 0, 0, 0}, sB: {0, 2, 0, 0}},
			},
			Call: gtmodel.SiteCall{
				Samples: []gtmodel.SampleCall{
					{Sample: sA, Kind: gtmodel.Hom, Nt0: seq.NtA, Nt1: seq.NtA},
					{Sample: sB, Kind: gtmodel.Hom, Nt0: seq.NtC, Nt1: seq.NtC},
				},
			},
		},
	}
	blankSample(columns, sA)
	assert.Equal(t, gtmodel.Unk, columns[0].Call.Samples[0].Kind)
	assert.Equal(t, gtmodel.Hom, columns[0].Call.Samples[1].Kind)
	_, stillThere := columns[0].Counts.Samples[sA]
	assert.False(t, stillThere)
	_, bStillThere := columns[0].Counts.Samples[sB]
	assert.True(t, bStillThere)
}
