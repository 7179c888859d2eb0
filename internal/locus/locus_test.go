package locus

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/rystacks/internal/popinfo"
	"github.com/grailbio/rystacks/internal/seq"
)

func allM(n int) sam.Cigar { return sam.Cigar{sam.NewCigarOp(sam.CigarMatch, n)} }

func TestSiteCountsSumInvariant(t *testing.T) {
	ref := seq.NewDNASeq4FromText("ACGTACGTAC")
	s := NewAlnSet(1, ref)
	s1 := popinfo.SampleID(0)
	s2 := popinfo.SampleID(1)
	s.Add(AlnRead{Read: Read{ID: "r1", Seq: seq.NewDNASeq4FromText("ACGTACGTAC"), Sample: s1}, Cigar: allM(10)})
	s.Add(AlnRead{Read: Read{ID: "r2", Seq: seq.NewDNASeq4FromText("ACGTACGTAC"), Sample: s1}, Cigar: allM(10)})
	s.Add(AlnRead{Read: Read{ID: "r3", Seq: seq.NewDNASeq4FromText("ACGAACGTAC"), Sample: s2}, Cigar: allM(10)})
	require.NoError(t, s.Validate())

	it := s.SiteIterator()
	for {
		sc, ok := it.Next()
		if !ok {
			break
		}
		var sum int
		for _, bc := range sc.Samples {
			sum += bc.Sum()
		}
		assert.Equal(t, sc.Total.Sum(), sum)
	}
}

func TestSiteCountsRespectsCigar(t *testing.T) {
	ref := seq.NewDNASeq4FromText("ACGT")
	s := NewAlnSet(1, ref)
	// One base inserted after position 1; should not contribute to any
	// reference column, and the trailing base shifts down one column.
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 2), sam.NewCigarOp(sam.CigarInsertion, 1), sam.NewCigarOp(sam.CigarMatch, 2)}
	s.Add(AlnRead{Read: Read{ID: "r1", Seq: seq.NewDNASeq4FromText("ACXGT"), Sample: 0}, Cigar: cigar})

	it := s.SiteIterator()
	var cols []seq.Nt2
	for {
		sc, ok := it.Next()
		if !ok {
			break
		}
		if sc.Total.Sum() > 0 {
			for nt := seq.Nt2(0); nt < 4; nt++ {
				if sc.Total[nt] == 1 {
					cols = append(cols, nt)
				}
			}
		}
	}
	// Query position 2 (the inserted 'X') never counts since X isn't ACGT, but the
	// inserted base also isn't a reference column at all; columns 0,1 come
	// from "AC" and columns 2,3 from "GT" (post-insertion).
	require.Len(t, cols, 4)
	assert.Equal(t, []seq.Nt2{seq.NtA, seq.NtC, seq.NtG, seq.NtT}, cols)
}

func TestJuxtapose(t *testing.T) {
	a := NewAlnSet(1, seq.NewDNASeq4FromText("ACGT"))
	a.Add(AlnRead{Read: Read{ID: "r1", Seq: seq.NewDNASeq4FromText("ACGT"), Sample: 0}, Cigar: allM(4)})

	b := NewAlnSet(1, seq.NewDNASeq4FromText("TTTT"))
	b.Add(AlnRead{Read: Read{ID: "r1", Seq: seq.NewDNASeq4FromText("TTTT"), Sample: 0}, Cigar: allM(4)})

	out := Juxtapose(a, b, 2)
	assert.Equal(t, "ACGTNNTTTT", out.Ref.String())
	require.NoError(t, out.Validate())
}

func TestReadsCovering(t *testing.T) {
	ref := seq.NewDNASeq4FromText("ACGTNNACGT")
	s := NewAlnSet(1, ref)
	s.Add(AlnRead{Read: Read{ID: "r1", Seq: seq.NewDNASeq4FromText("ACGT"), Sample: 0}, Cigar: allM(4)})
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarDeletion, 6), sam.NewCigarOp(sam.CigarMatch, 4)}
	s.Add(AlnRead{Read: Read{ID: "r2", Seq: seq.NewDNASeq4FromText("ACGT"), Sample: 1}, Cigar: cigar})

	assert.ElementsMatch(t, []int{0}, s.ReadsCovering(1))
	assert.ElementsMatch(t, []int{1}, s.ReadsCovering(7))
	assert.Empty(t, s.ReadsCovering(4))
}

func TestMergePairedReads(t *testing.T) {
	a := NewAlnSet(1, seq.NewDNASeq4FromText("ACGT"))
	a.Add(AlnRead{Read: Read{ID: "tmpl1", Seq: seq.NewDNASeq4FromText("ACGT"), Sample: 0}, Cigar: allM(4)})

	b := NewAlnSet(1, seq.NewDNASeq4FromText("TTTT"))
	b.Add(AlnRead{Read: Read{ID: "tmpl1", Seq: seq.NewDNASeq4FromText("TTTT"), Sample: 0}, Cigar: allM(4)})

	out := Juxtapose(a, b, 2)
	out.MergePairedReads()
	require.Len(t, out.Reads, 1)
	assert.Equal(t, "ACGTNNTTTT", out.Reads[0].Seq.String())
}
