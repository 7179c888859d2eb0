// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package locus holds the per-locus read/alignment data structures the
// driver builds up stage by stage: a Read/AlnRead pair, the ReadSet a
// catalog reader produces, and the AlnSet the driver assembles reads into
// before calling sites, grounded on the counts layout in
// grailbio-bio/pileup/common.go and pileup/snp/row.go's PileupPayload.
package locus

import (
	"github.com/biogo/hts/sam"

	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

// Read is one sequenced fragment belonging to a locus, before alignment.
type Read struct {
	ID     string
	Seq    seq.DNASeq4
	Sample popinfo.SampleID
}

// AlnRead is a Read that has been placed against a reference via a CIGAR.
// The CIGAR's reference-consumed length must equal the enclosing AlnSet's
// Ref length once the set is finalized.
type AlnRead struct {
	Read
	Cigar sam.Cigar
}

// ReadSet is the bag of reads belonging to one locus before assembly and
// alignment (spec.md's LocReadSet), as a catalog reader produces it.
type ReadSet struct {
	LocusID int
	Forward []Read
	Paired  []Read
	Pop     *popinfo.Table
}
