package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenseq/somavar/internal/hapalign"
)

var strParams = STRParams{MaxSTRDist: 10, MaxSTRUnitLen: 6, MinSTRUnits: 3, MinSTRLength: 6}

func col(kind hapalign.ColumnKind, ref, alt byte) hapalign.Column {
	return hapalign.Column{Kind: kind, RefBase: ref, AltBase: alt}
}

func TestExtractNoVariantsOnAllMatch(t *testing.T) {
	aln := hapalign.Alignment{Columns: []hapalign.Column{
		col(hapalign.ColMatch, 'A', 'A'),
		col(hapalign.ColMatch, 'C', 'C'),
	}}
	out := Extract(aln, 1000, []byte("ACGTACGT"), 50, strParams)
	assert.Empty(t, out)
}

func TestExtractSingleSNV(t *testing.T) {
	aln := hapalign.Alignment{Columns: []hapalign.Column{
		col(hapalign.ColMatch, 'A', 'A'),
		col(hapalign.ColMismatch, 'C', 'G'),
		col(hapalign.ColMatch, 'T', 'T'),
	}}
	out := Extract(aln, 1000, []byte("ACGTACGT"), 50, strParams)
	require.Len(t, out, 1)
	tr := out[0]
	assert.Equal(t, SNV, tr.Kind)
	assert.Equal(t, "C", tr.RefAllele)
	assert.Equal(t, "G", tr.AltAllele)
	assert.Equal(t, 1001, tr.GenomePos)
	assert.Equal(t, byte('A'), tr.PrevRefBase)
	assert.Equal(t, 1, tr.RefHapStart)
	assert.Equal(t, 2, tr.RefHapEnd)
}

func TestExtractAdjacentMismatchesPromoteToMNP(t *testing.T) {
	aln := hapalign.Alignment{Columns: []hapalign.Column{
		col(hapalign.ColMatch, 'A', 'A'),
		col(hapalign.ColMismatch, 'C', 'G'),
		col(hapalign.ColMismatch, 'G', 'C'),
		col(hapalign.ColMatch, 'T', 'T'),
	}}
	out := Extract(aln, 1000, []byte("ACGTACGT"), 50, strParams)
	require.Len(t, out, 1)
	assert.Equal(t, MNP, out[0].Kind)
	assert.Equal(t, "CG", out[0].RefAllele)
	assert.Equal(t, "GC", out[0].AltAllele)
}

func TestExtractInsertion(t *testing.T) {
	aln := hapalign.Alignment{Columns: []hapalign.Column{
		col(hapalign.ColMatch, 'A', 'A'),
		{Kind: hapalign.ColRefGap, AltBase: 'T'},
		{Kind: hapalign.ColRefGap, AltBase: 'T'},
		col(hapalign.ColMatch, 'C', 'C'),
	}}
	out := Extract(aln, 1000, []byte("ACGT"), 50, strParams)
	require.Len(t, out, 1)
	tr := out[0]
	assert.Equal(t, INS, tr.Kind)
	assert.Equal(t, "", tr.RefAllele)
	assert.Equal(t, "TT", tr.AltAllele)
	assert.Equal(t, 0, tr.RefHapEnd-tr.RefHapStart)
	assert.Equal(t, 2, tr.AltHapEnd-tr.AltHapStart)
}

func TestExtractDeletion(t *testing.T) {
	aln := hapalign.Alignment{Columns: []hapalign.Column{
		col(hapalign.ColMatch, 'A', 'A'),
		{Kind: hapalign.ColAltGap, RefBase: 'C'},
		{Kind: hapalign.ColAltGap, RefBase: 'G'},
		col(hapalign.ColMatch, 'T', 'T'),
	}}
	out := Extract(aln, 1000, []byte("ACGT"), 50, strParams)
	require.Len(t, out, 1)
	tr := out[0]
	assert.Equal(t, DEL, tr.Kind)
	assert.Equal(t, "CG", tr.RefAllele)
	assert.Equal(t, "", tr.AltAllele)
}

func TestExtractDropsOversizedIndel(t *testing.T) {
	aln := hapalign.Alignment{Columns: []hapalign.Column{
		{Kind: hapalign.ColRefGap, AltBase: 'T'},
		{Kind: hapalign.ColRefGap, AltBase: 'T'},
		{Kind: hapalign.ColRefGap, AltBase: 'T'},
	}}
	out := Extract(aln, 1000, []byte("ACGT"), 1, strParams) // maxIndelLength=1, insertion len 3 dropped
	assert.Empty(t, out)
}

func TestExtractRespectsRefStartOffset(t *testing.T) {
	aln := hapalign.Alignment{
		RefStartOffset: 5,
		Columns: []hapalign.Column{
			col(hapalign.ColMismatch, 'C', 'G'),
		},
	}
	out := Extract(aln, 1000, []byte("ACGTACGTACGT"), 50, strParams)
	require.Len(t, out, 1)
	assert.Equal(t, 1005, out[0].GenomePos)
}

func TestScanSTRFindsTandemRepeat(t *testing.T) {
	ref := []byte("CCCCCCCCCC" + "AGAGAGAG" + "TTTTTTTTTT") // (AG)x4 tandem repeat in the middle
	str := scanSTR(ref, 14, 1, strParams)
	assert.True(t, str.Found)
	assert.True(t, str.Copies >= strParams.MinSTRUnits)
}

func TestScanSTRNoneFound(t *testing.T) {
	ref := []byte("ACGTGATCGATCAGCTAGCATCGA")
	str := scanSTR(ref, 10, 1, strParams)
	assert.False(t, str.Found)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "SNV", SNV.String())
	assert.Equal(t, "INS", INS.String())
	assert.Equal(t, "DEL", DEL.String())
	assert.Equal(t, "MNP", MNP.String())
}
