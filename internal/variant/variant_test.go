package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenseq/somavar/internal/transcript"
)

func TestClassifyState(t *testing.T) {
	assert.Equal(t, StateNone, ClassifyState(0, 0))
	assert.Equal(t, StateTumor, ClassifyState(3, 0))
	assert.Equal(t, StateNormal, ClassifyState(0, 2))
	assert.Equal(t, StateShared, ClassifyState(3, 2))
}

func TestFilterString(t *testing.T) {
	assert.Equal(t, "PASS", Filter(0).String())
	assert.Equal(t, "LowCovTumor", LowCovTumor.String())
	f := LowCovTumor | StrandBias
	assert.Equal(t, "LowCovTumor;StrandBias", f.String())
}

func TestVariantIDStable(t *testing.T) {
	v1 := Variant{Chrom: "chr1", Pos1: 100, RefAllele: "A", AltAllele: "T"}
	v2 := Variant{Chrom: "chr1", Pos1: 100, RefAllele: "A", AltAllele: "T"}
	assert.Equal(t, v1.ID(), v2.ID())

	v3 := Variant{Chrom: "chr1", Pos1: 101, RefAllele: "A", AltAllele: "T"}
	assert.NotEqual(t, v1.ID(), v3.ID())
}

func TestVariantLen(t *testing.T) {
	snv := Variant{RefAllele: "A", AltAllele: "T"}
	assert.Equal(t, 1, snv.Len())

	ins := Variant{RefAllele: "A", AltAllele: "ATT"}
	assert.Equal(t, 2, ins.Len())

	del := Variant{RefAllele: "ATT", AltAllele: "A"}
	assert.Equal(t, 2, del.Len())
}

func TestFromTranscriptSNVKeepsPos(t *testing.T) {
	tr := transcript.Transcript{
		Kind:        transcript.SNV,
		RefAllele:   "A",
		AltAllele:   "T",
		GenomePos:   99,
		PrevRefBase: 'C',
		PrevAltBase: 'C',
	}
	v := FromTranscript("chr1", 0, tr, 21)
	require.Equal(t, 100, v.Pos1)
	assert.Equal(t, "A", v.RefAllele)
	assert.Equal(t, "T", v.AltAllele)
	assert.Equal(t, 21, v.KUsed)
}

func TestFromTranscriptIndelAddsAnchorBase(t *testing.T) {
	tr := transcript.Transcript{
		Kind:        transcript.INS,
		RefAllele:   "",
		AltAllele:   "TT",
		GenomePos:   99,
		PrevRefBase: 'C',
		PrevAltBase: 'C',
	}
	v := FromTranscript("chr1", 0, tr, 21)
	require.Equal(t, 99, v.Pos1) // decremented by one
	assert.Equal(t, "C", v.RefAllele)
	assert.Equal(t, "CTT", v.AltAllele)
}

func TestVCFLineOmittedForStateNone(t *testing.T) {
	c := Call{State: StateNone}
	_, ok := c.VCFLine()
	assert.False(t, ok)
}

func TestVCFLineRendersSomaticCall(t *testing.T) {
	c := Call{
		Variant: Variant{Chrom: "chr1", Pos1: 100, RefAllele: "A", AltAllele: "T", Kind: transcript.SNV, KUsed: 21},
		State:   StateTumor,
		Qual:    30.5,
		Normal:  SampleCall{Depth: 10},
		Tumor:   SampleCall{AltFwd: 3, AltRev: 2, Depth: 20},
	}
	line, ok := c.VCFLine()
	require.True(t, ok)
	assert.Contains(t, line, "chr1\t100\t.\tA\tT\t30.50\tPASS\t")
	assert.Contains(t, line, "SOMATIC")
	assert.Contains(t, line, "TYPE=SNV")
}

func TestApplyFiltersLowCoverage(t *testing.T) {
	c := Call{
		Variant: Variant{RefAllele: "A", AltAllele: "T"},
		Qual:    100,
		Normal:  SampleCall{Depth: 1},
		Tumor:   SampleCall{Depth: 1, AltFwd: 1},
	}
	c.ApplyFilters(20, 20, 0.01, 0.02, 3, 3, 1000, 1000, 0, 1, 1000000)
	assert.NotEqual(t, Filter(0), c.Filters)
	assert.Contains(t, c.Filters.String(), "LowCovNormal")
	assert.Contains(t, c.Filters.String(), "LowCovTumor")
}

func TestApplyFiltersPass(t *testing.T) {
	c := Call{
		Variant: Variant{RefAllele: "A", AltAllele: "T"},
		Qual:    100,
		Normal:  SampleCall{Depth: 30},
		Tumor:   SampleCall{Depth: 30, AltFwd: 10, AltRev: 10},
	}
	c.ApplyFilters(20, 20, 0.01, 0.02, 3, 3, 1000, 1000, 0, 1, 1000000)
	assert.Equal(t, Filter(0), c.Filters)
	assert.Equal(t, "PASS", c.Filters.String())
}

func TestTotalCoverage(t *testing.T) {
	c := Call{Normal: SampleCall{Depth: 5}, Tumor: SampleCall{Depth: 7}}
	assert.Equal(t, 12, c.TotalCoverage())
}
