package align

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignIdentical(t *testing.T) {
	a := NewAligner()
	res := a.Align([]byte("ACGTACGT"), []byte("ACGTACGT"))
	require.Len(t, res.Cigar, 1)
	assert.Equal(t, sam.CigarMatch, res.Cigar[0].Type())
	assert.Equal(t, 8, res.Cigar[0].Len())
	assert.Equal(t, 0, res.Gaps)
	assert.Equal(t, 1.0, res.PctIdentity)
	assert.Equal(t, 8, res.Contiguity)
}

func TestAlignSingleMismatch(t *testing.T) {
	a := NewAligner()
	res := a.Align([]byte("ACGAACGT"), []byte("ACGTACGT"))
	assert.Equal(t, 0, res.Gaps)
	assert.InDelta(t, 0.875, res.PctIdentity, 1e-9)
}

func TestAlignInsertionInQuery(t *testing.T) {
	a := NewAligner()
	// Query has one extra base relative to subject.
	res := a.Align([]byte("ACGTTACGT"), []byte("ACGTACGT"))
	require.True(t, res.Gaps >= 1)
	ref, read := res.Cigar.Lengths()
	assert.Equal(t, 8, ref)
	assert.Equal(t, 9, read)
}

func TestAlignDeletionInQuery(t *testing.T) {
	a := NewAligner()
	// Subject has one extra base relative to query.
	res := a.Align([]byte("ACGTACGT"), []byte("ACGTTACGT"))
	require.True(t, res.Gaps >= 1)
	ref, read := res.Cigar.Lengths()
	assert.Equal(t, 9, ref)
	assert.Equal(t, 8, read)
}

func TestAlignerReuseAcrossSizes(t *testing.T) {
	a := NewAligner()
	_ = a.Align([]byte("ACGT"), []byte("ACGT"))
	res := a.Align([]byte("ACGTACGTACGTACGT"), []byte("ACGTACGTACGTACGT"))
	assert.Equal(t, 0, res.Gaps)
	assert.Equal(t, 1.0, res.PctIdentity)
}

func TestAlignConstrainedSoftClipsTrailingJunk(t *testing.T) {
	a := NewAligner()
	query := []byte("ACGTACGTACGTGGGGGG")
	subject := []byte("ACGTACGTACGT")
	anchors := []Anchor{{QueryPos: 0, SubjPos: 0, Len: 12}}
	res := a.AlignConstrained(query, subject, anchors)

	var softClipLen int
	for _, op := range res.Cigar {
		if op.Type() == sam.CigarSoftClipped {
			softClipLen += op.Len()
		}
	}
	assert.Equal(t, 6, softClipLen)
	assert.Equal(t, 0, res.SubjectStart)
}

func TestAlignConstrainedSoftClipsLeadingJunk(t *testing.T) {
	a := NewAligner()
	query := []byte("GGGGGACGTACGTACGT")
	subject := []byte("ACGTACGTACGT")
	anchors := []Anchor{{QueryPos: 5, SubjPos: 0, Len: 12}}
	res := a.AlignConstrained(query, subject, anchors)

	require.NotEmpty(t, res.Cigar)
	firstOp := res.Cigar[0]
	assert.Equal(t, sam.CigarSoftClipped, firstOp.Type())
	assert.Equal(t, 5, firstOp.Len())
	assert.Equal(t, 0, res.SubjectStart)

	lastOp := res.Cigar[len(res.Cigar)-1]
	assert.NotEqual(t, sam.CigarSoftClipped, lastOp.Type())
}

func TestAlignConstrainedNoAnchorsFallsBackToGlobal(t *testing.T) {
	a := NewAligner()
	res := a.AlignConstrained([]byte("ACGT"), []byte("ACGT"), nil)
	assert.Equal(t, 0, res.Gaps)
	assert.Equal(t, 1.0, res.PctIdentity)
}
