// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"sort"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/log"

	"github.com/grailbio/rystacks/internal/align"
	"github.com/grailbio/rystacks/internal/debruijn"
	"github.com/grailbio/rystacks/internal/gtmodel"
	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/phase"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/rerrors"
	"github.com/grailbio/rystacks/internal/seq"
)

// Context is the run-context object Design Note (c) calls for: the
// metapopulation info and run options the driver needs, replacing the C++
// original's global mutable state. One Context is shared read-only across
// every worker; nothing in it is mutated after Run constructs it.
type Context struct {
	Opts *Opts
	Pop  *popinfo.Table
}

// worker holds the reusable, single-goroutine-owned working structures
// spec.md §3's ownership rule requires: a Graph, an Aligner, reset/rebuilt
// per locus rather than reallocated.
type worker struct {
	graph *debruijn.Graph
	align *align.Aligner
}

func newWorker(opts *Opts) *worker {
	return &worker{
		graph: debruijn.NewGraph(opts.KmerLength, opts.MinCov),
		align: align.NewAligner(),
	}
}

// columnResult is one reference column's depth tally and genotype call,
// the unit the writers iterate over in reference-column order (spec.md
// §5's ordering guarantee).
type columnResult struct {
	Col    int
	Counts locus.SiteCounts
	Call   gtmodel.SiteCall
}

// locusResult is everything the writers need to emit one locus's FASTA/
// VCF/TSV records.
type locusResult struct {
	LocusID          int
	Consensus        seq.DNASeq4
	Columns          []columnResult
	Phases           map[popinfo.SampleID]phase.SamplePhase
	Samples          []popinfo.SampleID
	DiscardedSamples []popinfo.SampleID
	PEAssembled      bool

	// HasPhaseSets is true if at least one sample has more than one phased
	// het column at this locus, i.e. there is a real phase set to report
	// (not just a singleton). The VCF writer includes the PS subfield only
	// when this holds.
	HasPhaseSets bool
}

func expandBytes(s seq.DNASeq4) []byte { return []byte(s.String()) }

// matchCigar returns an all-match CIGAR of length n, the CIGAR every
// forward read starts with before any juxtaposition extends it.
func matchCigar(n int) sam.Cigar { return sam.Cigar{sam.NewCigarOp(sam.CigarMatch, n)} }

// buildForwardSet constructs the forward-read alignment set: every
// forward read is the same length with an all-M CIGAR (spec.md §4.7 step
// 2), so the first read's length fixes the reference length.
func buildForwardSet(locusID int, reads []locus.Read) *locus.AlnSet {
	ref := seq.NewDNASeq4FromText(reads[0].Seq.String())
	s := locus.NewAlnSet(locusID, ref)
	refLen := ref.Length()
	for _, rd := range reads {
		s.Add(locus.AlnRead{Read: rd, Cigar: matchCigar(refLen)})
	}
	return s
}

// assemblePE runs the de Bruijn assembler over the paired-end reads and
// aligns each one back to the resulting contig, discarding any read whose
// CIGAR needs more than maxPairedCigarOps operations (spec.md §4.7 step
// 1's heuristic de-noiser). It returns (nil, false) if the PE stage
// produced nothing usable: an empty or non-DAG graph (spec.md's Open
// Question (a), kept as a hard stage failure, not retried) or every
// aligned read discarded.
func assemblePE(w *worker, locusID int, reads []locus.Read) (*locus.AlnSet, bool) {
	if len(reads) == 0 {
		return nil, false
	}
	seqs := make([]seq.DNASeq4, len(reads))
	for i, rd := range reads {
		seqs[i] = rd.Seq
	}
	w.graph.Rebuild(seqs)
	contigStr, err := w.graph.FindBestPath()
	if err != nil {
		log.Debug.Printf("locus %d: PE assembly failed: %v", locusID, err)
		return nil, false
	}

	contig := seq.NewDNASeq4FromText(contigStr)
	s := locus.NewAlnSet(locusID, contig)
	subject := expandBytes(contig)
	for _, rd := range reads {
		res := w.align.Align(expandBytes(rd.Seq), subject)
		if len(res.Cigar) > maxPairedCigarOps {
			continue
		}
		s.Add(locus.AlnRead{Read: rd, Cigar: res.Cigar})
	}
	if len(s.Reads) == 0 {
		log.Debug.Printf("locus %d: PE assembly produced a contig but every read failed alignment", locusID)
		return nil, false
	}
	return s, true
}

// mostFrequentAllele returns the Nt2 allele with the highest frequency in
// call, breaking ties by Nt2 order for determinism, and false if no
// allele was called at all.
func mostFrequentAllele(call gtmodel.SiteCall) (seq.Nt2, bool) {
	if len(call.Frequencies) == 0 {
		return 0, false
	}
	best := seq.Nt2(0)
	bestFreq := -1.0
	found := false
	for _, nt := range []seq.Nt2{seq.NtA, seq.NtC, seq.NtG, seq.NtT} {
		f, ok := call.Frequencies[nt]
		if !ok {
			continue
		}
		if f > bestFreq {
			bestFreq = f
			best = nt
			found = true
		}
	}
	return best, found
}

// blankSample zeroes a sample's genotype call across every column (the
// SampleInconsistent handling spec.md §7 requires: the sample's calls and
// depths are blanked for the whole locus, but the locus is still
// emitted).
func blankSample(columns []columnResult, sample popinfo.SampleID) {
	for ci := range columns {
		calls := columns[ci].Call.Samples
		for si := range calls {
			if calls[si].Sample != sample {
				continue
			}
			calls[si] = gtmodel.SampleCall{Sample: sample, Kind: gtmodel.Unk}
		}
		delete(columns[ci].Counts.Samples, sample)
	}
}

// processLocus runs the full per-locus pipeline (spec.md §4.7): assembly,
// alignment, calling, consensus rewrite, and phasing. It returns a
// *rerrors.LocusSkipped error (never anything else) when the locus has no
// usable reads at all; a failed PE stage only drops the paired-end
// extension; the locus itself is still emitted from its forward reads
// alone (spec.md §8 scenario 5).
func processLocus(c *Context, w *worker, rs *locus.ReadSet) (*locusResult, error) {
	if len(rs.Forward) == 0 {
		return nil, &rerrors.LocusSkipped{LocusID: rs.LocusID, Reason: "no forward reads"}
	}

	fwd := buildForwardSet(rs.LocusID, rs.Forward)
	combined := fwd
	peAssembled := false
	if pe, ok := assemblePE(w, rs.LocusID, rs.Paired); ok {
		combined = locus.Juxtapose(fwd, pe, spacerLen)
		peAssembled = true
	}
	combined.MergePairedReads()

	samples := make([]popinfo.SampleID, c.Pop.Len())
	for i := range samples {
		samples[i] = popinfo.SampleID(i)
	}

	model := gtmodel.Model{Kind: c.Opts.Model, GtAlpha: c.Opts.GtAlpha, VarAlpha: c.Opts.VarAlpha}
	it := combined.SiteIterator()
	columns := make([]columnResult, 0, combined.Ref.Length())
	calls := make(map[int]gtmodel.SiteCall, combined.Ref.Length())
	for {
		sc, ok := it.Next()
		if !ok {
			break
		}
		refNt := seq.NtA
		if nt4 := combined.Ref.At(sc.Column); nt4.IsACGT() {
			refNt = nt4.AsNt2()
		}
		call := model.Call(refNt, sc, samples)
		columns = append(columns, columnResult{Col: sc.Column, Counts: sc, Call: call})
		calls[sc.Column] = call
	}

	for _, col := range columns {
		if nt, ok := mostFrequentAllele(col.Call); ok {
			combined.Ref.Set(col.Col, seq.Nt2ToNt4(nt))
		} else {
			combined.Ref.Set(col.Col, seq.Nt4N)
		}
	}

	var phases map[popinfo.SampleID]phase.SamplePhase
	var discarded []popinfo.SampleID
	hasPhaseSets := false
	if !c.Opts.NoHaps {
		phases = phase.Phase(calls, combined, samples)
		for _, s := range samples {
			if !phases[s].Consistent {
				blankSample(columns, s)
				discarded = append(discarded, s)
				log.Error.Printf("locus %d: sample %s inconsistent, blanking calls", rs.LocusID, c.Pop.Name(s))
				continue
			}
			if len(phases[s].Phased) > 1 {
				hasPhaseSets = true
			}
		}
	}
	sort.Slice(discarded, func(i, j int) bool { return discarded[i] < discarded[j] })

	return &locusResult{
		LocusID:          rs.LocusID,
		Consensus:        combined.Ref,
		Columns:          columns,
		Phases:           phases,
		Samples:          samples,
		DiscardedSamples: discarded,
		PEAssembled:      peAssembled,
		HasPhaseSets:     hasPhaseSets,
	}, nil
}
