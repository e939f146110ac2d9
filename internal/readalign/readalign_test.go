package readalign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignIdenticalReadIsFullIdentity(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGTACGT")
	aln, err := Align(ref, ref)
	require.NoError(t, err)
	assert.Equal(t, 1.0, aln.Identity)
	assert.Equal(t, 0, aln.RefStart)
	assert.Equal(t, len(ref), aln.RefEnd)
}

func TestAlignMismatchLowersIdentity(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGTACGT")
	query := append([]byte(nil), ref...)
	query[10] = 'T'
	if ref[10] == 'T' {
		query[10] = 'A'
	}
	aln, err := Align(ref, query)
	require.NoError(t, err)
	assert.True(t, aln.Identity < 1.0)
}

func TestAlignProducesAtLeastOneIdentityRangeOnMatch(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGTACGT")
	aln, err := Align(ref, ref)
	require.NoError(t, err)
	require.NotEmpty(t, aln.Ranges)
	r := aln.Ranges[0]
	assert.True(t, r.RefEnd > r.RefStart)
	assert.True(t, r.QueryEnd > r.QueryStart)
}

func TestAlignShortQuerySubsequence(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGTACGTACGT")
	query := ref[4:16]
	aln, err := Align(ref, query)
	require.NoError(t, err)
	assert.True(t, aln.Identity > 0.9)
}

func TestMaxHelper(t *testing.T) {
	assert.Equal(t, 5, max(5, 3))
	assert.Equal(t, 7, max(2, 7))
}
