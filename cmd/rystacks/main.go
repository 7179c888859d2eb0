// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
rystacks derives per-locus genotype calls and read-backed haplotypes from
a catalog BAM produced by an upstream RAD-seq locus builder.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/rystacks/internal/rerrors"
	"github.com/grailbio/rystacks/internal/rystacks"
)

const version = "0.1.0"

var (
	inputDir      = flag.String("P", "", "Input directory containing the catalog BAM (required)")
	batch         = flag.Int("b", -1, "Batch id; default autodetects the single catalog in -P")
	whitelist     = flag.String("W", "", "Locus whitelist path, one numeric locus id per line")
	model         = flag.String("model", "snp", "Genotype model: snp, marukihigh, or marukilow")
	gtAlpha       = flag.Float64("gt-alpha", rystacks.DefaultOpts.GtAlpha, "Genotype call significance threshold")
	varAlpha      = flag.Float64("var-alpha", rystacks.DefaultOpts.VarAlpha, "Variant call significance threshold (Maruki models)")
	kmerLength    = flag.Int("kmer-length", rystacks.DefaultOpts.KmerLength, "De Bruijn graph k-mer length")
	minCov        = flag.Int("min-cov", rystacks.DefaultOpts.MinCov, "Minimum retained k-mer coverage")
	noHaps        = flag.Bool("no-haps", false, "Disable read-backed haplotype phasing")
	gfa           = flag.Bool("gfa", false, "Accepted and ignored; no assembly graph file is written")
	alns          = flag.Bool("alns", false, "Accepted and ignored; no alignment dump file is written")
	hapGraphs     = flag.Bool("hap-graphs", false, "Accepted and ignored; no phase graph file is written")
	depths        = flag.Bool("depths", false, "Include per-column depth lines in the model TSV")
	quiet         = flag.Bool("q", false, "Suppress informational logging")
	quietLong     = flag.Bool("quiet", false, "Suppress informational logging")
	parallelism   = flag.Int("parallelism", 0, "Maximum number of simultaneous locus workers; 0 = runtime.NumCPU()")
	showVersion   = flag.Bool("version", false, "Print the version and exit")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -P <dir> [OPTIONS]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	flag.Parse()

	if *showVersion {
		fmt.Println("rystacks " + version)
		return
	}

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "rystacks: -P is required")
		usage()
		os.Exit(13)
	}

	kind, err := rystacks.ParseModel(*model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rystacks: %v\n", err)
		os.Exit(13)
	}

	opts := rystacks.DefaultOpts
	opts.InputDir = *inputDir
	opts.WhitelistPath = *whitelist
	opts.Model = kind
	opts.GtAlpha = *gtAlpha
	opts.VarAlpha = *varAlpha
	opts.KmerLength = *kmerLength
	opts.MinCov = *minCov
	opts.NoHaps = *noHaps
	opts.GFA = *gfa
	opts.Alns = *alns
	opts.HapGraphs = *hapGraphs
	opts.Depths = *depths
	opts.Quiet = *quiet || *quietLong
	opts.Parallelism = *parallelism
	if *batch >= 0 {
		opts.AutoBatch = false
		opts.Batch = *batch
	}

	if !opts.Quiet {
		log.Debug.Printf("rystacks %s: starting on %s", version, opts.InputDir)
	}

	ctx := vcontext.Background()
	if err := rystacks.Run(ctx, &opts); err != nil {
		switch err.(type) {
		case *rerrors.ArgumentError:
			fmt.Fprintf(os.Stderr, "rystacks: %v\n", err)
			os.Exit(13)
		default:
			fmt.Fprintf(os.Stderr, "rystacks: %v\n", err)
			os.Exit(1)
		}
	}
}
