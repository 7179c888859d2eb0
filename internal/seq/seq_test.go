package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDNASeq2RoundTrip(t *testing.T) {
	d, err := NewDNASeq2FromText("ACGTACGTAC")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Length())
	assert.Equal(t, "ACGTACGTAC", d.String())
}

func TestDNASeq2InvalidBase(t *testing.T) {
	_, err := NewDNASeq2FromText("ACGTN")
	assert.Equal(t, ErrInvalidBase, err)
}

func TestDNASeq2Set(t *testing.T) {
	d, err := NewDNASeq2FromText("AAAA")
	require.NoError(t, err)
	d.Set(2, NtG)
	assert.Equal(t, "AAGA", d.String())
}

func TestDNASeq2ReverseComplementTwice(t *testing.T) {
	d, err := NewDNASeq2FromText("ACGTACGTAC")
	require.NoError(t, err)
	rc := d.ReverseComplement()
	assert.Equal(t, "GTACGTACGT", rc.String())
	rcrc := rc.ReverseComplement()
	assert.Equal(t, d.String(), rcrc.String())
}

func TestDNASeq4RoundTrip(t *testing.T) {
	d := NewDNASeq4FromText("ACGTN-ACGT")
	assert.Equal(t, 10, d.Length())
	assert.Equal(t, "ACGTN-ACGT", d.String())
}

func TestDNASeq4InvalidMapsToN(t *testing.T) {
	d := NewDNASeq4FromText("ACGTX")
	assert.Equal(t, "ACGTN", d.String())
}

func TestDNASeq4Extend(t *testing.T) {
	d := NewDNASeq4FromText("ACGT")
	d.ExtendLeft(2)
	d.ExtendRight(2)
	assert.Equal(t, "NNACGTNN", d.String())
}

func TestDNASeq4ReverseComplementTwice(t *testing.T) {
	d := NewDNASeq4FromText("ACGTN-ACGT")
	rc := d.ReverseComplement()
	rcrc := rc.ReverseComplement()
	assert.Equal(t, d.String(), rcrc.String())
}

func TestDNASeq4Set(t *testing.T) {
	d := NewDNASeq4FromText("AAAA")
	d.Set(1, Nt4Gap)
	assert.Equal(t, "A-AA", d.String())
}

func TestNt4AsNt2Panics(t *testing.T) {
	assert.Panics(t, func() { Nt4N.AsNt2() })
}
