package window

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextgenseq/somavar/internal/refseq"
)

func testReference(t *testing.T) *refseq.Reference {
	t.Helper()
	fasta := ">chr1\n" + strings.Repeat("ACGT", 250) + "\n" + // 1000 bases, chr1
		">chr2\n" + strings.Repeat("ACGT", 50) + "\n" // 200 bases, chr2
	fai := "chr1\t1000\t6\t1000\t1001\n" +
		"chr2\t200\t1013\t200\t201\n"
	ref, err := refseq.Open(strings.NewReader(fasta), strings.NewReader(fai))
	require.NoError(t, err)
	return ref
}

func TestExpandRegionString(t *testing.T) {
	ref := testReference(t)
	r, err := ExpandRegionString(ref, "chr1:101-200")
	require.NoError(t, err)
	assert.Equal(t, "chr1", r.Contig)
	assert.Equal(t, 0, r.ContigIdx)
	assert.Equal(t, 100, r.Start0)
	assert.Equal(t, 200, r.End0)
}

func TestExpandRegionStringUnknownContig(t *testing.T) {
	ref := testReference(t)
	_, err := ExpandRegionString(ref, "chrX:1-10")
	assert.Error(t, err)
}

func TestReadBEDFlatNotMerged(t *testing.T) {
	ref := testReference(t)
	bed := "chr1\t10\t20\n" +
		"chr1\t15\t25\n" + // overlaps the first; must NOT be merged
		"chr2\t0\t5\n"
	regions, err := ReadBED(strings.NewReader(bed), ref)
	require.NoError(t, err)
	require.Len(t, regions, 3)
	assert.Equal(t, Region{Contig: "chr1", ContigIdx: 0, Start0: 10, End0: 20}, regions[0])
	assert.Equal(t, Region{Contig: "chr1", ContigIdx: 0, Start0: 15, End0: 25}, regions[1])
}

func TestReadBEDSkipsCommentsAndHeaders(t *testing.T) {
	ref := testReference(t)
	bed := "# comment\ntrack name=foo\nbrowser position chr1\n\nchr1\t0\t10\n"
	regions, err := ReadBED(strings.NewReader(bed), ref)
	require.NoError(t, err)
	require.Len(t, regions, 1)
}

func TestReadBEDUnknownContig(t *testing.T) {
	ref := testReference(t)
	_, err := ReadBED(strings.NewReader("chrX\t0\t10\n"), ref)
	assert.Error(t, err)
}

func TestBuildPadsAndSortsWindows(t *testing.T) {
	ref := testReference(t)
	raw := []Region{
		{Contig: "chr2", ContigIdx: 1, Start0: 50, End0: 60},
		{Contig: "chr1", ContigIdx: 0, Start0: 500, End0: 510},
	}
	windows, err := Build(raw, ref, Params{Padding: 10, WindowSize: 600, PctOverlap: 0})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	// sorted by contig index first.
	assert.Equal(t, 0, windows[0].ContigIdx)
	assert.Equal(t, 1, windows[1].ContigIdx)
	assert.Equal(t, 490, windows[0].Start0)
	assert.Equal(t, 520, windows[0].End0)
	assert.Equal(t, 0, windows[0].Index)
	assert.Equal(t, 1, windows[1].Index)
}

func TestBuildSplitsOversizedRegionIntoSteppedWindows(t *testing.T) {
	ref := testReference(t)
	raw := []Region{{Contig: "chr1", ContigIdx: 0, Start0: 0, End0: 1000}}
	windows, err := Build(raw, ref, Params{Padding: 0, WindowSize: 300, PctOverlap: 0.1})
	require.NoError(t, err)
	assert.True(t, len(windows) > 1)
	for i := 1; i < len(windows); i++ {
		assert.True(t, windows[i].Start0 >= windows[i-1].Start0)
	}
	assert.Equal(t, 1000, windows[len(windows)-1].End0)
}

func TestBuildClampsPaddingToContigBounds(t *testing.T) {
	ref := testReference(t)
	raw := []Region{{Contig: "chr2", ContigIdx: 1, Start0: 0, End0: 10}}
	windows, err := Build(raw, ref, Params{Padding: 1000, WindowSize: 600, PctOverlap: 0})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, 0, windows[0].Start0)
	assert.Equal(t, 200, windows[0].End0)
}

func TestStepSize(t *testing.T) {
	assert.Equal(t, 600, stepSize(600, 0))
	assert.Equal(t, 500, stepSize(600, 1.0/6.0))
}

func TestRegionString(t *testing.T) {
	r := Region{Contig: "chr1", Start0: 99, End0: 200}
	assert.Equal(t, "chr1:100-200", r.String())
}
