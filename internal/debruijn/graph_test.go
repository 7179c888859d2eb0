package debruijn

import (
	"testing"

	"github.com/grailbio/rystacks/internal/kmer"
	"github.com/grailbio/rystacks/internal/seq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reads(strs ...string) []seq.DNASeq4 {
	out := make([]seq.DNASeq4, len(strs))
	for i, s := range strs {
		out[i] = seq.NewDNASeq4FromText(s)
	}
	return out
}

func TestFindBestPathSimpleContig(t *testing.T) {
	g := NewGraph(5, 2)
	// Two copies of a 10bp read with no repeated 4-mer, so each k-mer is seen
	// twice and the graph is a single linear chain.
	g.Rebuild(reads("ACGTTGCAAC", "ACGTTGCAAC"))
	contig, err := g.FindBestPath()
	require.NoError(t, err)
	assert.Equal(t, "ACGTTGCAAC", contig)
}

func TestFindBestPathEveryKmerRetained(t *testing.T) {
	g := NewGraph(4, 2)
	g.Rebuild(reads("GATTACAGGC", "GATTACAGGC"))
	contig, err := g.FindBestPath()
	require.NoError(t, err)
	sc := kmer.NewScanner(func() *seq.DNASeq4 { s := seq.NewDNASeq4FromText(contig); return &s }(), 4)
	for sc.Scan() {
		_, km := sc.Kmer()
		assert.Contains(t, g.index, km)
	}
}

func TestFindBestPathNonDAG(t *testing.T) {
	g := NewGraph(3, 1)
	// "AAAAAA" repeated forms a tandem-repeat cycle at k=3: AAA -> AAA.
	g.Rebuild(reads("AAAAAAAAAA"))
	_, err := g.FindBestPath()
	assert.Equal(t, ErrNotADAG, err)
}

func TestEmptyGraph(t *testing.T) {
	g := NewGraph(31, 2)
	g.Rebuild(nil)
	assert.True(t, g.Empty())
	_, err := g.FindBestPath()
	assert.Equal(t, ErrNotADAG, err)
}

func TestRebuildIsReusable(t *testing.T) {
	g := NewGraph(4, 1)
	g.Rebuild(reads("ACGTTGCA"))
	first, err := g.FindBestPath()
	require.NoError(t, err)
	g.Rebuild(reads("TTTTGGGG"))
	second, err := g.FindBestPath()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
