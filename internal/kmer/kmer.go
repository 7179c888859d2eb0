// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package kmer provides a compact fixed-length nucleotide word type and an
// incremental scanner that extracts them from a packed sequence, the same
// shape as grailbio/bio's fusion/kmer.go kmerizer, generalized from fusion's
// 32-base transcriptome words to the de Bruijn assembler's arbitrary
// (but <=32) k.
package kmer

import (
	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/rystacks/internal/seq"
)

// Kmer is a 2-bit-packed nucleotide word of up to 32 bases. The low 2*k bits
// hold the base values, most recent base in the low 2 bits, exactly the
// encoding fusion/kmer.go uses for its transcriptome words.
type Kmer uint64

// Invalid is a sentinel Kmer value representing "no kmer" (e.g. a window
// that contained an N). It is only a valid sentinel because k <= 32; a real
// 32-base kmer can collide with it in principle, but the assembler only
// ever compares Invalid by identity against values produced by Scan, which
// never returns it for a real window.
const Invalid = Kmer(0xffffffffffffffff)

// Hash returns a hash of k suitable for bucketing a kmer->node map; it's the
// same farmhash fusion/kmer_index.go uses for its kmer->genelist shards.
func (k Kmer) Hash() uint64 {
	return farm.Hash64WithSeed(nil, uint64(k))
}

// String renders k as upper-case ASCII, given the word length.
func (k Kmer) String(length int) string {
	out := make([]byte, length)
	for i := length - 1; i >= 0; i-- {
		out[i] = seq.Nt2(k & 3).ASCII()
		k >>= 2
	}
	return string(out)
}

// First returns the leading (leftmost) base of a length-`length` kmer.
func (k Kmer) First(length int) seq.Nt2 {
	return seq.Nt2((k >> uint((length-1)*2)) & 3)
}

// Last returns the trailing (rightmost) base of k.
func (k Kmer) Last() seq.Nt2 {
	return seq.Nt2(k & 3)
}

// Successor returns the kmer obtained by dropping k's leading base and
// appending nt, i.e. the unique kmer v such that an edge k->v exists on
// base nt in the de Bruijn graph.
func (k Kmer) Successor(nt seq.Nt2, length int) Kmer {
	mask := Kmer(1)<<uint(2*length) - 1
	return ((k << 2) | Kmer(nt)) & mask
}

// Predecessor returns the kmer obtained by dropping k's trailing base and
// prepending nt.
func (k Kmer) Predecessor(nt seq.Nt2, length int) Kmer {
	mask := Kmer(1)<<uint(2*length) - 1
	return ((k >> 2) | (Kmer(nt) << uint(2*(length-1)))) & mask
}

// Scanner extracts every length-k window of a DNASeq4 sequence that
// contains no N, yielding (position, Kmer) pairs via an incremental
// two-bit shift, mirroring fusion/kmer.go's kmerizer.Scan fast path.
type Scanner struct {
	k    int
	s    *seq.DNASeq4
	pos  int
	mask Kmer
	cur  Kmer
	have int // number of valid trailing bases accumulated since the last N/gap
}

// NewScanner returns a Scanner over s with word length k.
func NewScanner(s *seq.DNASeq4, k int) *Scanner {
	return &Scanner{
		k:    k,
		s:    s,
		mask: Kmer(1)<<uint(2*k) - 1,
	}
}

// Scan advances to the next valid kmer window, returning false once the
// sequence is exhausted.
func (sc *Scanner) Scan() bool {
	for sc.pos < sc.s.Length() {
		nt4 := sc.s.At(sc.pos)
		sc.pos++
		if !nt4.IsACGT() {
			sc.have = 0
			sc.cur = 0
			continue
		}
		sc.cur = ((sc.cur << 2) | Kmer(nt4.AsNt2())) & sc.mask
		sc.have++
		if sc.have >= sc.k {
			return true
		}
	}
	return false
}

// Kmer returns the kmer at the current scan position, along with the
// 0-based start offset of its first base in the source sequence.
func (sc *Scanner) Kmer() (start int, k Kmer) {
	return sc.pos - sc.k, sc.cur
}
