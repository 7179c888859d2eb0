package catalog

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/rystacks/internal/popinfo"
)

func newAux(t *testing.T, tag sam.Tag, v interface{}) sam.Aux {
	aux, err := sam.NewAux(tag, v)
	require.NoError(t, err)
	return aux
}

func TestLocusID(t *testing.T) {
	ref, err := sam.NewReference("42", "", "", 100, nil, nil)
	require.NoError(t, err)
	rec := &sam.Record{Name: "r1", Ref: ref}
	id, err := locusID(rec)
	require.NoError(t, err)
	assert.Equal(t, 42, id)
}

func TestLocusIDNonNumeric(t *testing.T) {
	ref, err := sam.NewReference("not_a_number", "", "", 100, nil, nil)
	require.NoError(t, err)
	rec := &sam.Record{Name: "r1", Ref: ref}
	_, err = locusID(rec)
	assert.Error(t, err)
}

func TestReadGroup(t *testing.T) {
	rec := &sam.Record{Name: "r1", AuxFields: sam.AuxFields{newAux(t, rgTag, "sampleA")}}
	rg, ok := readGroup(rec)
	require.True(t, ok)
	assert.Equal(t, "sampleA", rg)
}

func TestReadGroupMissing(t *testing.T) {
	rec := &sam.Record{Name: "r1"}
	_, ok := readGroup(rec)
	assert.False(t, ok)
}

func TestToReadReverseComplements(t *testing.T) {
	pop := popinfo.Build(map[string]struct{}{"sampleA": {}})
	rec := &sam.Record{
		Name:      "r1",
		Flags:     sam.Reverse,
		Seq:       sam.NewSeq([]byte("AACG")),
		AuxFields: sam.AuxFields{newAux(t, rgTag, "sampleA")},
	}
	rd, err := toRead(rec, pop)
	require.NoError(t, err)
	assert.Equal(t, "AACG", rd.Seq.ReverseComplement().String())
}

func TestToReadUnknownSample(t *testing.T) {
	pop := popinfo.Build(map[string]struct{}{"sampleA": {}})
	rec := &sam.Record{
		Name:      "r1",
		Seq:       sam.NewSeq([]byte("ACGT")),
		AuxFields: sam.AuxFields{newAux(t, rgTag, "nope")},
	}
	_, err := toRead(rec, pop)
	assert.Error(t, err)
}
