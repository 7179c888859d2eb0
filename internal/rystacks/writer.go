// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"

	"github.com/grailbio/rystacks/internal/gtmodel"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/rerrors"
	"github.com/grailbio/rystacks/internal/seq"
)

// outputs bundles the per-run output files spec.md §6 names (all
// `batch_<id>.rystacks.*` under the input directory), and is the single
// writer spec.md §5's concurrency model calls for: the driver loop hands
// it one locusResult at a time, in catalog order, from one goroutine.
type outputs struct {
	ctx context.Context

	faFile file.File
	faGz   *gzip.Writer

	vcfFile file.File
	vcf     io.Writer

	tsvFile file.File
	tsv     *tsv.Writer

	logFile file.File
	log     io.Writer

	pop    *popinfo.Table
	depths bool
}

// openOutputs creates every output file for the given base path (e.g.
// ".../batch_3.rystacks"), returning an outputs ready to receive
// writeLocus calls.
func openOutputs(ctx context.Context, base string, pop *popinfo.Table, depths bool) (o *outputs, err error) {
	o = &outputs{ctx: ctx, pop: pop, depths: depths}

	if o.faFile, err = file.Create(ctx, base+".fa.gz"); err != nil {
		return nil, &rerrors.IoError{Path: base + ".fa.gz", Err: err}
	}
	o.faGz = gzip.NewWriter(o.faFile.Writer(ctx))

	if o.vcfFile, err = file.Create(ctx, base+".vcf"); err != nil {
		return nil, &rerrors.IoError{Path: base + ".vcf", Err: err}
	}
	o.vcf = o.vcfFile.Writer(ctx)
	o.writeVCFHeader()

	if o.tsvFile, err = file.Create(ctx, base+".tsv"); err != nil {
		return nil, &rerrors.IoError{Path: base + ".tsv", Err: err}
	}
	o.tsv = tsv.NewWriter(o.tsvFile.Writer(ctx))

	if o.logFile, err = file.Create(ctx, base+".log"); err != nil {
		return nil, &rerrors.IoError{Path: base + ".log", Err: err}
	}
	o.log = o.logFile.Writer(ctx)

	return o, nil
}

// Close flushes and closes every output file, reporting the first error
// encountered.
func (o *outputs) Close() (err error) {
	if e := o.faGz.Close(); e != nil && err == nil {
		err = e
	}
	if e := o.faFile.Close(o.ctx); e != nil && err == nil {
		err = e
	}
	if e := o.vcfFile.Close(o.ctx); e != nil && err == nil {
		err = e
	}
	if e := o.tsv.Flush(); e != nil && err == nil {
		err = e
	}
	if e := o.tsvFile.Close(o.ctx); e != nil && err == nil {
		err = e
	}
	if e := o.logFile.Close(o.ctx); e != nil && err == nil {
		err = e
	}
	return err
}

func (o *outputs) writeVCFHeader() {
	fmt.Fprintf(o.vcf, "##fileformat=VCFv4.2\n")
	fmt.Fprintf(o.vcf, "##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Total depth\">\n")
	fmt.Fprintf(o.vcf, "##INFO=<ID=AD,Number=R,Type=Integer,Description=\"Allelic depths\">\n")
	fmt.Fprintf(o.vcf, "##INFO=<ID=AF,Number=A,Type=Float,Description=\"Allele frequency\">\n")
	fmt.Fprintf(o.vcf, "##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	fmt.Fprintf(o.vcf, "##FORMAT=<ID=PS,Number=1,Type=Integer,Description=\"Phase set\">\n")
	fmt.Fprintf(o.vcf, "##FORMAT=<ID=DP,Number=1,Type=Integer,Description=\"Sample depth\">\n")
	fmt.Fprintf(o.vcf, "##FORMAT=<ID=AD,Number=R,Type=Integer,Description=\"Sample allelic depths\">\n")
	fmt.Fprintf(o.vcf, "##FORMAT=<ID=GL,Number=G,Type=Float,Description=\"Genotype likelihoods\">\n")
	fmt.Fprint(o.vcf, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, name := range o.pop.Names() {
		fmt.Fprintf(o.vcf, "\t%s", name)
	}
	fmt.Fprint(o.vcf, "\n")
}

// writeLocus emits one locus's FASTA, VCF and model-TSV records.
func (o *outputs) writeLocus(res *locusResult) error {
	o.writeFASTA(res)
	o.writeVCF(res)
	return o.writeTSV(res)
}

func (o *outputs) writeFASTA(res *locusResult) {
	header := fmt.Sprintf(">%d NS=%d", res.LocusID, len(res.Samples))
	if n := len(res.DiscardedSamples); n > 0 {
		header += fmt.Sprintf(" n_discarded_samples=%d", n)
	}
	fmt.Fprintf(o.faGz, "%s\n%s\n", header, res.Consensus.String())
}

// alleleIndex returns the position of nt within alleles, or -1 if absent
// (e.g. a sample's observed base that didn't make the called allele set).
func alleleIndex(alleles []seq.Nt2, nt seq.Nt2) int {
	for i, a := range alleles {
		if a == nt {
			return i
		}
	}
	return -1
}

func (o *outputs) writeVCF(res *locusResult) {
	for _, col := range res.Columns {
		if len(col.Call.Alleles) <= 1 {
			continue // monomorphic: VCF only lists variant sites.
		}
		o.writeVCFRecord(res, col)
	}
}

func (o *outputs) writeVCFRecord(res *locusResult, col columnResult) {
	call := col.Call
	alleles := call.Alleles
	ref := alleles[0].ASCII()
	altStrs := make([]string, 0, len(alleles)-1)
	for _, a := range alleles[1:] {
		altStrs = append(altStrs, string(a.ASCII()))
	}

	dp := col.Counts.Total.Sum()
	ad := make([]int, len(alleles))
	for i, a := range alleles {
		ad[i] = col.Counts.Total[a]
	}
	adStrs := make([]string, len(ad))
	for i, v := range ad {
		adStrs[i] = strconv.Itoa(v)
	}
	afStrs := make([]string, 0, len(alleles)-1)
	for _, a := range alleles[1:] {
		afStrs = append(afStrs, strconv.FormatFloat(call.Frequencies[a], 'f', 4, 64))
	}

	format := "GT:DP:AD:GL"
	if res.HasPhaseSets {
		format = "GT:PS:DP:AD:GL"
	}

	fmt.Fprintf(o.vcf, "%d\t%d\t.\t%c\t%s\t.\t.\tDP=%d;AD=%s;AF=%s\t%s",
		res.LocusID, col.Col+1, ref, strings.Join(altStrs, ","),
		dp, strings.Join(adStrs, ","), strings.Join(afStrs, ","), format)

	for _, sample := range res.Samples {
		fmt.Fprint(o.vcf, "\t", o.sampleField(res, sample, col, format))
	}
	fmt.Fprint(o.vcf, "\n")
}

func (o *outputs) sampleField(res *locusResult, sample popinfo.SampleID, col columnResult, format string) string {
	var sc gtmodel.SampleCall
	found := false
	for _, c := range col.Call.Samples {
		if c.Sample == sample {
			sc, found = c, true
			break
		}
	}
	counts := col.Counts.Samples[sample]
	alleles := col.Call.Alleles

	gt := "./."
	var ps string
	if found && sc.Kind != gtmodel.Unk {
		i0, i1 := alleleIndex(alleles, sc.Nt0), alleleIndex(alleles, sc.Nt1)
		sep := "/"
		phase, hasPhase := res.Phases[sample]
		if hasPhase {
			if het, ok := phase.Phased[col.Col]; ok {
				sep = "|"
				li, ri := alleleIndex(alleles, het.Left), alleleIndex(alleles, het.Right)
				gt = fmt.Sprintf("%d%s%d", li, sep, ri)
				if len(phase.Phased) > 1 {
					ps = strconv.Itoa(het.PhaseSet)
				}
			}
		}
		if gt == "./." {
			if i0 > i1 {
				i0, i1 = i1, i0
			}
			gt = fmt.Sprintf("%d%s%d", i0, sep, i1)
		}
	}

	dp := 0
	ad := make([]string, len(alleles))
	for i, a := range alleles {
		n := counts[a]
		ad[i] = strconv.Itoa(n)
		dp += n
	}

	gl := "."
	if found && len(sc.LogLiks) > 0 {
		parts := make([]string, 0, len(sc.LogLiks))
		for i := 0; i < len(alleles); i++ {
			for j := i; j < len(alleles); j++ {
				g := gtmodel.Genotype{A: alleles[i], B: alleles[j]}
				if g.A > g.B {
					g.A, g.B = g.B, g.A
				}
				if ll, ok := sc.LogLiks[g]; ok {
					parts = append(parts, strconv.FormatFloat(ll, 'f', 2, 64))
				}
			}
		}
		if len(parts) > 0 {
			gl = strings.Join(parts, ",")
		}
	}

	fields := []string{gt}
	if strings.Contains(format, "PS") {
		if ps == "" {
			ps = "."
		}
		fields = append(fields, ps)
	}
	fields = append(fields, strconv.Itoa(dp), strings.Join(ad, ","), gl)
	return strings.Join(fields, ":")
}

// modelDigit returns spec.md §6's per-column "model" TSV digit: the
// number of called alleles, capped at 9 so it always renders as one
// character.
func modelDigit(n int) byte {
	if n > 9 {
		n = 9
	}
	return byte('0' + n)
}

// hexByte renders n as a two-digit upper-case hex pair, capped at 0xFF.
func hexByte(n int) string {
	if n > 0xFF {
		n = 0xFF
	}
	return fmt.Sprintf("%02X", n)
}

func sModelCode(k gtmodel.CallKind) byte {
	switch k {
	case gtmodel.Hom:
		return 'O'
	case gtmodel.Het:
		return 'E'
	default:
		return 'U'
	}
}

func sampleCallAt(col columnResult, sample popinfo.SampleID) gtmodel.SampleCall {
	for _, c := range col.Call.Samples {
		if c.Sample == sample {
			return c
		}
	}
	return gtmodel.SampleCall{Sample: sample, Kind: gtmodel.Unk}
}

// writeTSV emits the five model-file line types for one locus (spec.md
// §6): consensus, model, depth (gated by --depths), s_model per sample,
// and s_depths per sample (also gated by --depths).
func (o *outputs) writeTSV(res *locusResult) error {
	w := o.tsv
	id := strconv.Itoa(res.LocusID)

	w.WriteString("consensus")
	w.WriteString(id)
	w.WriteString(res.Consensus.String())
	if err := w.EndLine(); err != nil {
		return err
	}

	model := make([]byte, len(res.Columns))
	for i, col := range res.Columns {
		model[i] = modelDigit(len(col.Call.Alleles))
	}
	w.WriteString("model")
	w.WriteString(id)
	w.WriteString(string(model))
	if err := w.EndLine(); err != nil {
		return err
	}

	if o.depths {
		depth := make([]byte, 0, len(res.Columns)*2)
		for _, col := range res.Columns {
			depth = append(depth, hexByte(col.Counts.Total.Sum())...)
		}
		w.WriteString("depth")
		w.WriteString(id)
		w.WriteString(string(depth))
		if err := w.EndLine(); err != nil {
			return err
		}
	}

	for _, sample := range res.Samples {
		codes := make([]byte, len(res.Columns))
		for i, col := range res.Columns {
			codes[i] = sModelCode(sampleCallAt(col, sample).Kind)
		}
		w.WriteString("s_model")
		w.WriteString(id)
		w.WriteString(o.pop.Name(sample))
		w.WriteString(string(codes))
		if err := w.EndLine(); err != nil {
			return err
		}

		if o.depths {
			var sb strings.Builder
			for _, col := range res.Columns {
				bc := col.Counts.Samples[sample]
				sb.WriteString(hexByte(bc[seq.NtA]))
				sb.WriteString(hexByte(bc[seq.NtC]))
				sb.WriteString(hexByte(bc[seq.NtG]))
				sb.WriteString(hexByte(bc[seq.NtT]))
			}
			w.WriteString("s_depths")
			w.WriteString(id)
			w.WriteString(o.pop.Name(sample))
			w.WriteString(sb.String())
			if err := w.EndLine(); err != nil {
				return err
			}
		}
	}
	return nil
}

// runSummary accumulates the counts writeLog reports.
type runSummary struct {
	Opts            *Opts
	TotalLoci       int
	RetainedLoci    int
	SkippedLoci     int
	SkipReasons     map[string]int
	InconsistentSamples int
}

func newRunSummary(opts *Opts) *runSummary {
	return &runSummary{Opts: opts, SkipReasons: make(map[string]int)}
}

func (s *runSummary) recordSkip(err *rerrors.LocusSkipped) {
	s.TotalLoci++
	s.SkippedLoci++
	s.SkipReasons[err.Reason]++
}

func (s *runSummary) recordRetained(res *locusResult) {
	s.TotalLoci++
	s.RetainedLoci++
	s.InconsistentSamples += len(res.DiscardedSamples)
}

// writeLog writes the run configuration and final counts (spec.md §6's
// `*.log`).
func (o *outputs) writeLog(s *runSummary) error {
	fmt.Fprintf(o.log, "model=%v gt-alpha=%v var-alpha=%v kmer-length=%v min-cov=%v no-haps=%v\n",
		s.Opts.Model, s.Opts.GtAlpha, s.Opts.VarAlpha, s.Opts.KmerLength, s.Opts.MinCov, s.Opts.NoHaps)
	fmt.Fprintf(o.log, "loci: total=%d retained=%d skipped=%d\n", s.TotalLoci, s.RetainedLoci, s.SkippedLoci)
	for reason, n := range s.SkipReasons {
		fmt.Fprintf(o.log, "  skipped (%s): %d\n", reason, n)
	}
	fmt.Fprintf(o.log, "samples blanked as inconsistent: %d\n", s.InconsistentSamples)
	return nil
}
