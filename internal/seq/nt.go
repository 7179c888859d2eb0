// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package seq implements the compact nucleotide containers the rest of
// rystacks builds on: a 2-bit ACGT-only sequence and a 4-bit ACGTN+gap
// sequence, both with random access, mutation, iteration and
// reverse-complement.
package seq

import "github.com/pkg/errors"

// Nt2 is a 2-bit nucleotide value, one of NtA, NtC, NtG, NtT.
type Nt2 uint8

// The four possible Nt2 values. Numeric order matches the .bam seq8 A-bit
// position convention used throughout grailbio/bio's pileup package.
const (
	NtA Nt2 = iota
	NtC
	NtG
	NtT
)

// ErrOutOfBounds is the panic value of indexed accessors given an index outside
// [0, length).
var ErrOutOfBounds = errors.New("seq: index out of bounds")

// ErrInvalidBase is returned when text contains a character outside the
// accepted alphabet for a 2-bit sequence.
var ErrInvalidBase = errors.New("seq: invalid base for 2-bit sequence")

var nt2ToASCII = [4]byte{'A', 'C', 'G', 'T'}

// ASCII returns the upper-case ASCII rendering of n.
func (n Nt2) ASCII() byte { return nt2ToASCII[n&3] }

// Complement returns the Watson-Crick complement of n.
func (n Nt2) Complement() Nt2 { return 3 - (n & 3) }

// asciiToNt2 maps upper- and lower-case ACGT to Nt2; any other byte maps to
// 0xff.
var asciiToNt2 [256]uint8

func init() {
	for i := range asciiToNt2 {
		asciiToNt2[i] = 0xff
	}
	asciiToNt2['A'], asciiToNt2['a'] = uint8(NtA), uint8(NtA)
	asciiToNt2['C'], asciiToNt2['c'] = uint8(NtC), uint8(NtC)
	asciiToNt2['G'], asciiToNt2['g'] = uint8(NtG), uint8(NtG)
	asciiToNt2['T'], asciiToNt2['t'] = uint8(NtT), uint8(NtT)
}

// Nt4 is a 4-bit nucleotide value: A, C, G, T, N or a gap marker.
type Nt4 uint8

// The six possible Nt4 values.
const (
	Nt4A Nt4 = iota
	Nt4C
	Nt4G
	Nt4T
	Nt4N
	Nt4Gap
)

var nt4ToASCII = [6]byte{'A', 'C', 'G', 'T', 'N', '-'}

// ASCII returns the upper-case ASCII (or '-' for a gap) rendering of n.
func (n Nt4) ASCII() byte { return nt4ToASCII[n&7] }

// IsACGT reports whether n is one of A, C, G, T (i.e. not N and not a gap).
func (n Nt4) IsACGT() bool { return n <= Nt4T }

// AsNt2 converts an ACGT Nt4 to Nt2. It panics if n is N or a gap; callers
// must check IsACGT first.
func (n Nt4) AsNt2() Nt2 {
	if !n.IsACGT() {
		panic("seq: AsNt2 called on non-ACGT Nt4 value")
	}
	return Nt2(n)
}

// Nt2ToNt4 widens an Nt2 value into the equivalent Nt4 value.
func Nt2ToNt4(n Nt2) Nt4 { return Nt4(n & 3) }

var asciiToNt4 [256]uint8

func init() {
	for i := range asciiToNt4 {
		asciiToNt4[i] = uint8(Nt4N)
	}
	asciiToNt4['A'], asciiToNt4['a'] = uint8(Nt4A), uint8(Nt4A)
	asciiToNt4['C'], asciiToNt4['c'] = uint8(Nt4C), uint8(Nt4C)
	asciiToNt4['G'], asciiToNt4['g'] = uint8(Nt4G), uint8(Nt4G)
	asciiToNt4['T'], asciiToNt4['t'] = uint8(Nt4T), uint8(Nt4T)
	asciiToNt4['N'], asciiToNt4['n'] = uint8(Nt4N), uint8(Nt4N)
	asciiToNt4['-'] = uint8(Nt4Gap)
}
