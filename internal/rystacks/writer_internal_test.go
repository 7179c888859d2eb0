// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package rystacks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/rystacks/internal/gtmodel"
	"github.com/grailbio/rystacks/internal/seq"
)

func TestModelDigitCapsAtNine(t *testing.T) {
	assert.Equal(t, byte('1'), modelDigit(1))
	assert.Equal(t, byte('4'), modelDigit(4))
	assert.Equal(t, byte('9'), modelDigit(12))
}

func TestHexByteCapsAt0xFF(t *testing.T) {
	assert.Equal(t, "00", hexByte(0))
	assert.Equal(t, "0A", hexByte(10))
	assert.Equal(t, "FF", hexByte(500))
}

func TestAlleleIndex(t *testing.T) {
	alleles := []seq.Nt2{seq.NtA, seq.NtG}
	assert.Equal(t, 0, alleleIndex(alleles, seq.NtA))
	assert.Equal(t, 1, alleleIndex(alleles, seq.NtG))
	assert.Equal(t, -1, alleleIndex(alleles, seq.NtC))
}

func TestSModelCode(t *testing.T) {
	assert.Equal(t, byte('O'), sModelCode(gtmodel.Hom))
	assert.Equal(t, byte('E'), sModelCode(gtmodel.Het))
	assert.Equal(t, byte('U'), sModelCode(gtmodel.Unk))
}
