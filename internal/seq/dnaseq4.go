// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package seq

import "github.com/grailbio/rystacks/biosimd"

// DNASeq4 is a 4-bit-packed nucleotide sequence supporting A, C, G, T, N and
// a gap marker. It is the container used for reads, contigs and aligned
// rows throughout rystacks, since (unlike DNASeq2) it can represent the
// N-padding CIGAR application introduces and the gap bases an alignment
// inserts.
type DNASeq4 struct {
	n    int
	bits []byte // 2 bases per byte, little-endian nibble order
}

// NewDNASeq4FromText packs an ASCII string. Any character outside
// {A,C,G,T,N,-} (case-insensitive) is treated as N, per spec: "Text
// containing characters outside the accepted alphabet maps to N".
func NewDNASeq4FromText(s string) DNASeq4 {
	d := DNASeq4{n: len(s), bits: make([]byte, (len(s)+1)/2)}
	for i := 0; i < len(s); i++ {
		d.setRaw(i, Nt4(asciiToNt4[s[i]]))
	}
	return d
}

// NewDNASeq4 returns an all-N sequence of length n.
func NewDNASeq4(n int) DNASeq4 {
	d := DNASeq4{n: n, bits: make([]byte, (n+1)/2)}
	for i := 0; i < n; i++ {
		d.setRaw(i, Nt4N)
	}
	return d
}

// Length returns the number of bases in d.
func (d *DNASeq4) Length() int { return d.n }

func (d *DNASeq4) setRaw(i int, nt Nt4) {
	byteIdx := i / 2
	if i%2 == 0 {
		d.bits[byteIdx] = (d.bits[byteIdx] & 0xf0) | byte(nt&0xf)
	} else {
		d.bits[byteIdx] = (d.bits[byteIdx] & 0x0f) | (byte(nt&0xf) << 4)
	}
}

// At returns the base at position i. It panics with ErrOutOfBounds if i is
// outside [0, Length()).
func (d *DNASeq4) At(i int) Nt4 {
	if i < 0 || i >= d.n {
		panic(ErrOutOfBounds)
	}
	byteIdx := i / 2
	if i%2 == 0 {
		return Nt4(d.bits[byteIdx] & 0xf)
	}
	return Nt4(d.bits[byteIdx] >> 4)
}

// Set mutates the base at position i in place; other positions are
// unaffected.
func (d *DNASeq4) Set(i int, nt Nt4) {
	if i < 0 || i >= d.n {
		panic(ErrOutOfBounds)
	}
	d.setRaw(i, nt)
}

// Each calls f for every base in order.
func (d *DNASeq4) Each(f func(i int, nt Nt4)) {
	for i := 0; i < d.n; i++ {
		f(i, d.At(i))
	}
}

// String renders d as upper-case ASCII, with gaps rendered as '-'.
func (d *DNASeq4) String() string {
	out := make([]byte, d.n)
	for i := 0; i < d.n; i++ {
		out[i] = d.At(i).ASCII()
	}
	return string(out)
}

// ExtendRight appends n N bases to the end of d.
func (d *DNASeq4) ExtendRight(n int) {
	for i := 0; i < n; i++ {
		d.appendOne(Nt4N)
	}
}

// ExtendLeft prepends n N bases to the start of d.
func (d *DNASeq4) ExtendLeft(n int) {
	if n == 0 {
		return
	}
	shifted := NewDNASeq4(d.n + n)
	for i := 0; i < d.n; i++ {
		shifted.setRaw(n+i, d.At(i))
	}
	*d = shifted
}

func (d *DNASeq4) appendOne(nt Nt4) {
	i := d.n
	d.n++
	if (d.n+1)/2 > len(d.bits) {
		d.bits = append(d.bits, 0)
	}
	d.setRaw(i, nt)
}

// Append appends a single base to the end of d.
func (d *DNASeq4) Append(nt Nt4) { d.appendOne(nt) }

// ReverseComplement returns a new DNASeq4, equal in length, whose bases are
// reverse-complemented and reversed in order. Gap markers map to themselves;
// N maps to itself. It builds the ASCII form and hands it to
// biosimd.ReverseComp8Inplace rather than re-deriving a second
// complement table, the same table pileup.go relies on for .bam seq8
// handling.
func (d *DNASeq4) ReverseComplement() DNASeq4 {
	ascii := make([]byte, d.n)
	for i := 0; i < d.n; i++ {
		ascii[i] = d.At(i).ASCII()
	}
	// Gaps aren't part of biosimd's ASCII alphabet; handle them ourselves by
	// reversing their positions and letting biosimd handle the rest in place.
	gapPos := make([]bool, d.n)
	for i, c := range ascii {
		if c == '-' {
			gapPos[i] = true
			ascii[i] = 'N' // placeholder so ReverseComp8Inplace doesn't choke
		}
	}
	biosimd.ReverseComp8Inplace(ascii)
	out := NewDNASeq4(d.n)
	for i := 0; i < d.n; i++ {
		srcGap := gapPos[d.n-1-i]
		if srcGap {
			out.setRaw(i, Nt4Gap)
		} else {
			out.setRaw(i, Nt4(asciiToNt4[ascii[i]]))
		}
	}
	return out
}
