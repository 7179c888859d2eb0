package gtmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/rystacks/internal/locus"
	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

func counts(a, c, g, t int) locus.BaseCounts {
	return locus.BaseCounts{seq.NtA: a, seq.NtC: c, seq.NtG: g, seq.NtT: t}
}

func TestCallSNPMonomorphic(t *testing.T) {
	m := Model{Kind: SNP, GtAlpha: 0.05, VarAlpha: 0.05}
	sc := locus.SiteCounts{
		Total:   counts(10, 0, 0, 0),
		Samples: map[popinfo.SampleID]locus.BaseCounts{0: counts(10, 0, 0, 0)},
	}
	call := m.Call(seq.NtA, sc, []popinfo.SampleID{0})
	require.Len(t, call.Alleles, 1)
	assert.Equal(t, seq.NtA, call.Alleles[0])
	require.Len(t, call.Samples, 1)
	assert.Equal(t, Hom, call.Samples[0].Kind)
	assert.Equal(t, seq.NtA, call.Samples[0].Nt0)
	assert.Equal(t, seq.NtA, call.Samples[0].Nt1)
}

func TestCallSNPHeterozygous(t *testing.T) {
	m := Model{Kind: SNP, GtAlpha: 0.05, VarAlpha: 0.05}
	sc := locus.SiteCounts{
		Total:   counts(10, 0, 10, 0),
		Samples: map[popinfo.SampleID]locus.BaseCounts{0: counts(10, 0, 10, 0)},
	}
	call := m.Call(seq.NtA, sc, []popinfo.SampleID{0})
	require.Len(t, call.Samples, 1)
	assert.Equal(t, Het, call.Samples[0].Kind)
	assert.ElementsMatch(t, []seq.Nt2{seq.NtA, seq.NtG}, []seq.Nt2{call.Samples[0].Nt0, call.Samples[0].Nt1})
}

func TestCallSNPZeroDepthIsUnk(t *testing.T) {
	m := Model{Kind: SNP, GtAlpha: 0.05, VarAlpha: 0.05}
	sc := locus.SiteCounts{
		Total: counts(10, 0, 0, 0),
		Samples: map[popinfo.SampleID]locus.BaseCounts{
			0: counts(10, 0, 0, 0),
			1: counts(0, 0, 0, 0),
		},
	}
	call := m.Call(seq.NtA, sc, []popinfo.SampleID{0, 1})
	require.Len(t, call.Samples, 2)
	assert.Equal(t, Unk, call.Samples[1].Kind)
}

func TestMarukiLowForcesMonomorphicBelowVarAlpha(t *testing.T) {
	// A single erroneous read among many shouldn't clear a strict var-alpha.
	m := Model{Kind: MarukiLow, GtAlpha: 0.05, VarAlpha: 1e-12}
	sc := locus.SiteCounts{
		Total:   counts(99, 1, 0, 0),
		Samples: map[popinfo.SampleID]locus.BaseCounts{0: counts(99, 1, 0, 0)},
	}
	call := m.Call(seq.NtA, sc, []popinfo.SampleID{0})
	assert.Len(t, call.Alleles, 1)
}

func TestMarukiHighHeterozygous(t *testing.T) {
	m := Model{Kind: MarukiHigh, GtAlpha: 0.05, VarAlpha: 0.05}
	sc := locus.SiteCounts{
		Total:   counts(10, 0, 10, 0),
		Samples: map[popinfo.SampleID]locus.BaseCounts{0: counts(10, 0, 10, 0)},
	}
	call := m.Call(seq.NtA, sc, []popinfo.SampleID{0})
	require.Len(t, call.Samples, 1)
	assert.Equal(t, Het, call.Samples[0].Kind)
}
