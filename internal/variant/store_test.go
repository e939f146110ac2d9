package variant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(chrom string, contigIdx, pos1 int, ref, alt string, depth int) Call {
	return Call{
		Variant: Variant{Chrom: chrom, ContigIdx: contigIdx, Pos1: pos1, RefAllele: ref, AltAllele: alt},
		State:   StateTumor,
		Tumor:   SampleCall{Depth: depth, AltFwd: 1},
	}
}

func TestStoreTryAddAndFlushAll(t *testing.T) {
	s := NewStore()
	require.True(t, s.TryAdd([]Call{call("chr1", 0, 100, "A", "T", 10)}))

	var buf strings.Builder
	require.NoError(t, s.FlushAll(&buf))
	assert.Contains(t, buf.String(), "chr1\t100")
}

func TestStoreMergeKeepsHigherCoverage(t *testing.T) {
	s := NewStore()
	require.True(t, s.TryAdd([]Call{call("chr1", 0, 100, "A", "T", 5)}))
	require.True(t, s.TryAdd([]Call{call("chr1", 0, 100, "A", "T", 50)}))

	var buf strings.Builder
	require.NoError(t, s.FlushAll(&buf))
	assert.Contains(t, buf.String(), "DP")
	// only one line should be written: the higher-coverage entry replaced the lower one.
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
}

func TestStoreMergeDropsLowerCoverage(t *testing.T) {
	s := NewStore()
	require.True(t, s.TryAdd([]Call{call("chr1", 0, 100, "A", "T", 50)}))
	require.True(t, s.TryAdd([]Call{call("chr1", 0, 100, "A", "T", 5)})) // lower: discarded

	var buf strings.Builder
	require.NoError(t, s.FlushAll(&buf))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], ":50")
}

func TestStoreFlushWindowOnlyFlushesUpToThreshold(t *testing.T) {
	s := NewStore()
	require.True(t, s.TryAdd([]Call{
		call("chr1", 0, 100, "A", "T", 10),
		call("chr1", 0, 500, "A", "T", 10),
	}))

	var buf strings.Builder
	require.NoError(t, s.FlushWindow(0, 200, &buf))
	assert.Contains(t, buf.String(), "\t100\t")
	assert.NotContains(t, buf.String(), "\t500\t")

	buf.Reset()
	require.NoError(t, s.FlushAll(&buf))
	assert.Contains(t, buf.String(), "\t500\t")
}

func TestStoreStateNoneNeverStored(t *testing.T) {
	s := NewStore()
	c := call("chr1", 0, 100, "A", "T", 10)
	c.State = StateNone
	require.True(t, s.TryAdd([]Call{c}))

	var buf strings.Builder
	require.NoError(t, s.FlushAll(&buf))
	assert.Empty(t, buf.String())
}
