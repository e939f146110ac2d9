package genotype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenseq/somavar/internal/reads"
	"github.com/nextgenseq/somavar/internal/readalign"
)

func TestVariantSupportCountsAndDedup(t *testing.T) {
	vs := newVariantSupport()
	vs.add("read1", reads.Forward, Alt, []byte{30, 30}, false)
	vs.add("read1", reads.Forward, Alt, []byte{30, 30}, false) // duplicate name+strand, ignored
	vs.add("read2", reads.Forward, Alt, []byte{30, 30}, true)
	vs.add("read3", reads.Reverse, Ref, []byte{30, 30}, false)

	assert.Equal(t, 2, vs.Count(Alt, reads.Forward))
	assert.Equal(t, 1, vs.Count(Ref, reads.Reverse))
	assert.Equal(t, 2, vs.TotalAlt())
	assert.Equal(t, 1, vs.TotalRef())
	assert.Equal(t, 3, vs.Depth())
	assert.InDelta(t, 2.0/3.0, vs.VAF(), 1e-9)
	assert.Equal(t, 1, vs.HPTaggedCount(Alt))
	assert.Equal(t, 0, vs.HPTaggedCount(Ref))
}

func TestVariantSupportStrandBiasPhred(t *testing.T) {
	vs := newVariantSupport()
	for i := 0; i < 10; i++ {
		vs.add("r"+string(rune('a'+i)), reads.Forward, Alt, []byte{30}, false)
	}
	for i := 0; i < 10; i++ {
		vs.add("s"+string(rune('a'+i)), reads.Reverse, Ref, []byte{30}, false)
	}
	phred := vs.StrandBiasPhred()
	assert.True(t, phred > 0)
}

func TestConfirmsFullContainment(t *testing.T) {
	aln := readalignAlignment(0, 20, 0, 20, []rangeSpec{{0, 20, 0, 20}})
	qs, ok := Confirms(aln, 5, 10)
	require.True(t, ok)
	assert.Equal(t, 5, qs)
}

func TestConfirmsNoRangeCovers(t *testing.T) {
	aln := readalignAlignment(0, 20, 0, 20, []rangeSpec{{0, 4, 0, 4}})
	_, ok := Confirms(aln, 10, 15)
	assert.False(t, ok)
}

func TestGenotyperAttributesRefAndAltReads(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGTACGT")
	alt := []byte("ACGTACGAACGTACGTACGT") // SNV at offset 7: T->A
	haplotypes := [][]byte{ref, alt}
	loci := []Locus{{HaplotypeIdx: 1, RefStart: 7, RefEnd: 8, AltStart: 7, AltEnd: 8}}

	g := NewGenotyper(haplotypes, loci)

	refRead := reads.Read{Sample: reads.Tumor, Name: "ref-read", Seq: ref, BaseQuals: constQual(len(ref))}
	altRead := reads.Read{Sample: reads.Tumor, Name: "alt-read", Seq: alt, BaseQuals: constQual(len(alt))}

	require.NoError(t, g.GenotypeRead(refRead))
	require.NoError(t, g.GenotypeRead(altRead))

	support := g.Support(0, reads.Tumor)
	require.NotNil(t, support)
	assert.Equal(t, 1, support.TotalRef())
	assert.Equal(t, 1, support.TotalAlt())
}

func TestGenotyperNoSupportReturnsNil(t *testing.T) {
	g := NewGenotyper([][]byte{[]byte("ACGTACGT")}, []Locus{{HaplotypeIdx: 1}})
	assert.Nil(t, g.Support(0, reads.Tumor))
}

func constQual(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = 40
	}
	return q
}

type rangeSpec struct{ refStart, refEnd, queryStart, queryEnd int }

func readalignAlignment(refStart, refEnd, queryStart, queryEnd int, ranges []rangeSpec) readalign.Alignment {
	var out readalign.Alignment
	out.RefStart, out.RefEnd = refStart, refEnd
	out.QueryStart, out.QueryEnd = queryStart, queryEnd
	for _, r := range ranges {
		out.Ranges = append(out.Ranges, readalign.IdentityRange{
			RefStart: r.refStart, RefEnd: r.refEnd, QueryStart: r.queryStart, QueryEnd: r.queryEnd,
		})
	}
	return out
}
