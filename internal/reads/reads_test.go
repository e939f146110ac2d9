package reads

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(t *testing.T, seq string, qual []byte, flags sam.Flags) *sam.Record {
	t.Helper()
	rec, err := sam.NewRecord("read1", nil, nil, 100, -1, -1, 60, nil, []byte(seq), qual, nil)
	require.NoError(t, err)
	rec.Flags = flags
	return rec
}

func TestFromAlignmentTrimsNEnds(t *testing.T) {
	seq := "NNACGTACGTNN"
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 40
	}
	rec := newRecord(t, seq, qual, 0)
	r, ok := FromAlignment(rec, Tumor, 20, 4)
	require.True(t, ok)
	assert.Equal(t, "ACGTACGT", string(r.Seq))
}

func TestFromAlignmentRejectsShortAfterTrim(t *testing.T) {
	seq := "NNNNACNNNN"
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 40
	}
	rec := newRecord(t, seq, qual, 0)
	_, ok := FromAlignment(rec, Tumor, 20, 4)
	assert.False(t, ok)
}

func TestFromAlignmentTrimsLowQualityBases(t *testing.T) {
	seq := "ACGTACGTACGT"
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 40
	}
	qual[0] = 1 // below threshold, trimmed from the left
	rec := newRecord(t, seq, qual, 0)
	r, ok := FromAlignment(rec, Tumor, 20, 4)
	require.True(t, ok)
	assert.Equal(t, "CGTACGTACGT", string(r.Seq))
	assert.Equal(t, 101, r.Start0) // pos advanced by one trimmed base
}

func TestStrandFromFlags(t *testing.T) {
	r := Read{Flags: sam.Reverse}
	assert.Equal(t, Reverse, r.Strand())
	r2 := Read{Flags: 0}
	assert.Equal(t, Forward, r2.Strand())
}

func TestSampleString(t *testing.T) {
	assert.Equal(t, "TUMOR", Tumor.String())
	assert.Equal(t, "NORMAL", Normal.String())
}

func TestDedupKeyDiffersBySample(t *testing.T) {
	a := DedupKey("read1", Tumor)
	b := DedupKey("read1", Normal)
	assert.NotEqual(t, a, b)

	c := DedupKey("read1", Tumor)
	assert.Equal(t, a, c)
}

func TestFromAlignmentPreservesAuxTags(t *testing.T) {
	seq := "ACGTACGTACGT"
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 40
	}
	rec := newRecord(t, seq, qual, 0)
	hp, err := sam.NewAux(sam.NewTag("HP"), 1)
	require.NoError(t, err)
	bx, err := sam.NewAux(sam.NewTag("BX"), "AAAA-1")
	require.NoError(t, err)
	rec.AuxFields = append(rec.AuxFields, hp, bx)

	r, ok := FromAlignment(rec, Tumor, 20, 4)
	require.True(t, ok)
	assert.True(t, r.HasHP)
	assert.Equal(t, 1, r.HP)
	assert.True(t, r.HasBX)
	assert.Equal(t, "AAAA-1", r.BX)
}
