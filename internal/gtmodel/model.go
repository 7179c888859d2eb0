// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package gtmodel implements the per-site genotype caller: three selectable
// likelihood models (multinomial "snp", Maruki-low, Maruki-high) behind one
// dispatch function, per Design Note (d)'s "tagged variant, not
// inheritance" guidance, the same shape `pileup/snp/pileup.go`'s
// model-selection switch uses for choosing among its own scoring variants.
package gtmodel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

// Kind selects which likelihood model Call dispatches to.
type Kind int

// The three models spec.md §4.5 requires.
const (
	SNP Kind = iota
	MarukiLow
	MarukiHigh
)

// defaultSeqError is the fixed per-base sequencing error rate the
// multinomial model assumes; spec.md leaves the exact value unspecified, so
// this mirrors Stacks' own long-standing default.
const defaultSeqError = 0.01

// Model is a configured caller: a Kind plus the two significance thresholds
// spec.md §6's --gt-alpha/--var-alpha flags expose.
type Model struct {
	Kind             Kind
	GtAlpha, VarAlpha float64
}

// CallKind is a SampleCall's genotype classification.
type CallKind int

const (
	Unk CallKind = iota
	Hom
	Het
)

// Genotype is an unordered diploid allele pair.
type Genotype struct {
	A, B seq.Nt2
}

func genotype(a, b seq.Nt2) Genotype {
	if a > b {
		a, b = b, a
	}
	return Genotype{A: a, B: b}
}

// SampleCall is one sample's call at one site (spec.md's SampleCall).
// Invariant: Kind==Het implies Nt0!=Nt1; Kind==Hom implies Nt0==Nt1.
type SampleCall struct {
	Sample  popinfo.SampleID
	Kind    CallKind
	Nt0     seq.Nt2
	Nt1     seq.Nt2
	LogLiks map[Genotype]float64
}

// SiteCall is one column's call (spec.md's SiteCall): the observed allele
// set (ref pinned first, then decreasing frequency) and every sample's
// call. Frequencies sums to 1 iff at least one sample call was non-Unk.
type SiteCall struct {
	Alleles     []seq.Nt2
	Frequencies map[seq.Nt2]float64
	Samples     []SampleCall
}

// baseLogProb is P(observed=b | true base = nt) under the fixed error
// model: 1-err for the true base, err/3 split across the other three.
func baseLogProb(nt, b seq.Nt2, err float64) float64 {
	if nt == b {
		return logf(1 - err)
	}
	return logf(err / 3)
}

func logf(x float64) float64 {
	if x <= 0 {
		return -1e18
	}
	return math.Log(x)
}

// genotypeLogLik computes the multinomial log-likelihood of observing
// counts under genotype g, treating each read as independently drawn from
// one of g's two alleles with equal probability (or a single allele, if
// g is homozygous) before the error model is applied.
func genotypeLogLik(g Genotype, counts locus.BaseCounts, err float64) float64 {
	total := 0.0
	for b := seq.Nt2(0); b < 4; b++ {
		n := counts[b]
		if n == 0 {
			continue
		}
		var p float64
		if g.A == g.B {
			p = math.Exp(baseLogProb(g.A, b, err))
		} else {
			p = 0.5*math.Exp(baseLogProb(g.A, b, err)) + 0.5*math.Exp(baseLogProb(g.B, b, err))
		}
		total += float64(n) * logf(p)
	}
	return total
}

// allGenotypes returns every unordered diploid genotype over the given
// candidate alleles (at least one allele must be present).
func allGenotypes(alleles []seq.Nt2) []Genotype {
	var out []Genotype
	for i := 0; i < len(alleles); i++ {
		for j := i; j < len(alleles); j++ {
			out = append(out, genotype(alleles[i], alleles[j]))
		}
	}
	return out
}

// chiSquareThreshold returns the 1-df chi-square critical value at
// significance alpha, used for the genotype and variant likelihood-ratio
// tests.
func chiSquareThreshold(alpha float64) float64 {
	return distuv.ChiSquared{K: 1}.Quantile(1 - alpha)
}

// callSample picks sample s's best-supported genotype among candidates by
// log-likelihood, accepting it only if a likelihood-ratio test against the
// second-best rejects at significance gtAlpha; otherwise the sample is
// called Unk.
func callSample(sample popinfo.SampleID, counts locus.BaseCounts, candidates []Genotype, err, gtAlpha float64) SampleCall {
	liks := make(map[Genotype]float64, len(candidates))
	for _, g := range candidates {
		liks[g] = genotypeLogLik(g, counts, err)
	}
	if counts.Sum() == 0 {
		return SampleCall{Sample: sample, Kind: Unk, LogLiks: liks}
	}

	order := make([]Genotype, len(candidates))
	copy(order, candidates)
	sort.Slice(order, func(i, j int) bool { return liks[order[i]] > liks[order[j]] })

	best := order[0]
	kind := Hom
	if best.A != best.B {
		kind = Het
	}
	if len(order) > 1 {
		g := 2 * (liks[best] - liks[order[1]])
		if g <= chiSquareThreshold(gtAlpha) {
			kind = Unk
		}
	}
	sc := SampleCall{Sample: sample, Kind: kind, LogLiks: liks}
	if kind != Unk {
		sc.Nt0, sc.Nt1 = best.A, best.B
	}
	return sc
}

// candidateAlleles returns the Nt2 values with nonzero total count, ref
// pinned first.
func candidateAlleles(ref seq.Nt2, total locus.BaseCounts) []seq.Nt2 {
	var out []seq.Nt2
	if total[ref] > 0 {
		out = append(out, ref)
	}
	order := []seq.Nt2{seq.NtA, seq.NtC, seq.NtG, seq.NtT}
	sort.Slice(order, func(i, j int) bool { return total[order[i]] > total[order[j]] })
	for _, nt := range order {
		if nt == ref {
			continue
		}
		if total[nt] > 0 {
			out = append(out, nt)
		}
	}
	return out
}

func alleleFrequencies(samples []SampleCall) map[seq.Nt2]float64 {
	counts := map[seq.Nt2]int{}
	total := 0
	for _, sc := range samples {
		if sc.Kind == Unk {
			continue
		}
		counts[sc.Nt0]++
		counts[sc.Nt1]++
		total += 2
	}
	if total == 0 {
		return map[seq.Nt2]float64{}
	}
	freqs := make(map[seq.Nt2]float64, len(counts))
	for nt, n := range counts {
		freqs[nt] = float64(n) / float64(total)
	}
	return freqs
}

// Call dispatches to the configured model to produce a SiteCall for one
// column, given its reference base, its SiteCounts, and the dense set of
// sample IDs present in the locus (so every sample gets a call, even one
// with zero depth at this column).
func (m Model) Call(ref seq.Nt2, sc locus.SiteCounts, samples []popinfo.SampleID) SiteCall {
	switch m.Kind {
	case MarukiLow, MarukiHigh:
		return m.callMaruki(ref, sc, samples)
	default:
		return m.callSNP(ref, sc, samples)
	}
}

func (m Model) callSNP(ref seq.Nt2, sc locus.SiteCounts, samples []popinfo.SampleID) SiteCall {
	alleles := candidateAlleles(ref, sc.Total)
	if len(alleles) == 0 {
		return SiteCall{Frequencies: map[seq.Nt2]float64{}}
	}
	candidates := allGenotypes(alleles)
	calls := make([]SampleCall, len(samples))
	for i, s := range samples {
		calls[i] = callSample(s, sc.Samples[s], candidates, defaultSeqError, m.GtAlpha)
	}
	return SiteCall{Alleles: alleles, Frequencies: alleleFrequencies(calls), Samples: calls}
}

// callMaruki implements both Maruki variants. It first runs a population-
// level variant test (the estimated multi-allele multinomial model against
// a monomorphic null) at VarAlpha; a site failing that test is forced
// monomorphic regardless of what individual reads suggest. A site that
// passes is called exactly as callSNP, except MarukiHigh additionally adds a
// Hardy-Weinberg prior from the estimated allele frequencies to every
// genotype's log-likelihood: log(2pq) for heterozygous genotypes and
// log(1-2pq) for homozygous ones. Since 2pq never exceeds 0.5, this prior
// never favours a heterozygous call over a homozygous one.
func (m Model) callMaruki(ref seq.Nt2, sc locus.SiteCounts, samples []popinfo.SampleID) SiteCall {
	alleles := candidateAlleles(ref, sc.Total)
	if len(alleles) <= 1 {
		return m.callSNP(ref, sc, samples)
	}

	total := sc.Total
	counts := make([]float64, len(alleles))
	for i, nt := range alleles {
		counts[i] = float64(total[nt])
	}
	depth := floats.Sum(counts)
	freqs := make([]float64, len(alleles))
	for i := range alleles {
		freqs[i] = counts[i] / depth
	}
	plur := 0
	for i := range counts {
		if counts[i] > counts[plur] {
			plur = i
		}
	}

	nullLL := 0.0
	altLL := 0.0
	for i, nt := range alleles {
		n := float64(total[nt])
		if n == 0 {
			continue
		}
		nullLL += n * logf(errorAdjusted(i == plur, defaultSeqError))
		altLL += n * logf(errorAdjustedP(freqs[i], defaultSeqError, len(alleles)))
	}
	g := 2 * (altLL - nullLL)
	if g <= chiSquareThreshold(m.VarAlpha) {
		// Fails the variant test: force monomorphic at the plurality allele.
		ref = alleles[plur]
		alleles = []seq.Nt2{ref}
	}

	candidates := allGenotypes(alleles)
	calls := make([]SampleCall, len(samples))
	for i, s := range samples {
		counts := sc.Samples[s]
		if m.Kind == MarukiHigh && len(alleles) > 1 {
			calls[i] = callSampleWithPrior(s, counts, candidates, defaultSeqError, m.GtAlpha, hetPrior(freqs))
		} else {
			calls[i] = callSample(s, counts, candidates, defaultSeqError, m.GtAlpha)
		}
	}
	return SiteCall{Alleles: alleles, Frequencies: alleleFrequencies(calls), Samples: calls}
}

// errorAdjusted returns the per-read probability mass under the
// monomorphic null: 1-err if the read matches the plurality allele, err
// otherwise (lumped, since the null treats every non-plurality base as
// equally erroneous).
func errorAdjusted(isPlurality bool, err float64) float64 {
	if isPlurality {
		return 1 - err
	}
	return err
}

// errorAdjustedP mixes the estimated allele frequency into the per-read
// emission probability under the free-frequency alternative model.
func errorAdjustedP(freq, err float64, nAlleles int) float64 {
	return freq*(1-err) + (1-freq)*err/float64(nAlleles-1)
}

// hetPrior is Maruki-high's heterozygosity prior weight (2pq under
// Hardy-Weinberg) derived from the estimated site allele frequencies.
func hetPrior(freqs []float64) float64 {
	if len(freqs) < 2 {
		return 0
	}
	return 2 * freqs[0] * freqs[1]
}

func callSampleWithPrior(sample popinfo.SampleID, counts locus.BaseCounts, candidates []Genotype, err, gtAlpha, hetWeight float64) SampleCall {
	liks := make(map[Genotype]float64, len(candidates))
	for _, g := range candidates {
		ll := genotypeLogLik(g, counts, err)
		if g.A != g.B {
			ll += logf(hetWeight)
		} else {
			ll += logf(1 - hetWeight)
		}
		liks[g] = ll
	}
	if counts.Sum() == 0 {
		return SampleCall{Sample: sample, Kind: Unk, LogLiks: liks}
	}
	order := make([]Genotype, len(candidates))
	copy(order, candidates)
	sort.Slice(order, func(i, j int) bool { return liks[order[i]] > liks[order[j]] })
	best := order[0]
	kind := Hom
	if best.A != best.B {
		kind = Het
	}
	if len(order) > 1 {
		g := 2 * (liks[best] - liks[order[1]])
		if g <= chiSquareThreshold(gtAlpha) {
			kind = Unk
		}
	}
	sc := SampleCall{Sample: sample, Kind: kind, LogLiks: liks}
	if kind != Unk {
		sc.Nt0, sc.Nt1 = best.A, best.B
	}
	return sc
}
