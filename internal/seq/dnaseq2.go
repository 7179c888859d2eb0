// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package seq

// DNASeq2 is a 2-bit-packed, ACGT-only nucleotide sequence. It cannot
// represent N or gap bases; use DNASeq4 when that's required.
type DNASeq2 struct {
	n    int
	bits []byte // 4 bases per byte, little-endian within the byte
}

// NewDNASeq2FromText packs an ASCII ACGT string. It fails with
// ErrInvalidBase if s contains any character outside {A,C,G,T,a,c,g,t}.
func NewDNASeq2FromText(s string) (DNASeq2, error) {
	d := DNASeq2{n: len(s), bits: make([]byte, (len(s)+3)/4)}
	for i := 0; i < len(s); i++ {
		v := asciiToNt2[s[i]]
		if v == 0xff {
			return DNASeq2{}, ErrInvalidBase
		}
		d.setRaw(i, Nt2(v))
	}
	return d, nil
}

// Length returns the number of bases in d.
func (d *DNASeq2) Length() int { return d.n }

func (d *DNASeq2) setRaw(i int, nt Nt2) {
	byteIdx := i / 4
	shift := uint(i%4) * 2
	d.bits[byteIdx] = (d.bits[byteIdx] &^ (0x3 << shift)) | (byte(nt&3) << shift)
}

// At returns the base at position i. It panics with ErrOutOfBounds if i is
// outside [0, Length()).
func (d *DNASeq2) At(i int) Nt2 {
	if i < 0 || i >= d.n {
		panic(ErrOutOfBounds)
	}
	byteIdx := i / 4
	shift := uint(i%4) * 2
	return Nt2((d.bits[byteIdx] >> shift) & 0x3)
}

// Set mutates the base at position i in place.
func (d *DNASeq2) Set(i int, nt Nt2) {
	if i < 0 || i >= d.n {
		panic(ErrOutOfBounds)
	}
	d.setRaw(i, nt)
}

// Each calls f for every base in order.
func (d *DNASeq2) Each(f func(i int, nt Nt2)) {
	for i := 0; i < d.n; i++ {
		f(i, d.At(i))
	}
}

// String renders d as upper-case ASCII.
func (d *DNASeq2) String() string {
	out := make([]byte, d.n)
	for i := 0; i < d.n; i++ {
		out[i] = d.At(i).ASCII()
	}
	return string(out)
}

// ReverseComplement returns a new DNASeq2 with bases reverse-complemented
// and reversed in order.
func (d *DNASeq2) ReverseComplement() DNASeq2 {
	out := DNASeq2{n: d.n, bits: make([]byte, len(d.bits))}
	for i := 0; i < d.n; i++ {
		out.setRaw(i, d.At(d.n-1-i).Complement())
	}
	return out
}
