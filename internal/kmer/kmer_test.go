package kmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCanonicalizesToLexSmaller(t *testing.T) {
	// "AAAA" revcomp is "TTTT"; "AAAA" < "TTTT", so Plus.
	k := New([]byte("AAAA"))
	assert.Equal(t, "AAAA", k.Seq())
	assert.Equal(t, Plus, k.Sign())

	// "TTTT" revcomp is "AAAA"; "AAAA" < "TTTT", so Minus.
	k2 := New([]byte("TTTT"))
	assert.Equal(t, "AAAA", k2.Seq())
	assert.Equal(t, Minus, k2.Sign())
}

func TestEqualIgnoresSign(t *testing.T) {
	a := New([]byte("AAAA"))
	b := New([]byte("TTTT"))
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.ID(), b.ID())
}

func TestIDStableAcrossCalls(t *testing.T) {
	a := New([]byte("ACGTACGT"))
	b := New([]byte("ACGTACGT"))
	assert.Equal(t, a.ID(), b.ID())
}

func TestSignFlip(t *testing.T) {
	assert.Equal(t, Minus, Plus.Flip())
	assert.Equal(t, Plus, Minus.Flip())
}

func TestKindOf(t *testing.T) {
	plus := New([]byte("AAAA"))  // Plus
	minus := New([]byte("TTTT")) // Minus
	assert.Equal(t, PlusPlus, KindOf(plus, plus))
	assert.Equal(t, PlusMinus, KindOf(plus, minus))
	assert.Equal(t, MinusPlus, KindOf(minus, plus))
	assert.Equal(t, MinusMinus, KindOf(minus, minus))
}

func TestKindRev(t *testing.T) {
	assert.Equal(t, MinusMinus, PlusPlus.Rev())
	assert.Equal(t, PlusPlus, MinusMinus.Rev())
	assert.Equal(t, PlusMinus, PlusMinus.Rev())
	assert.Equal(t, MinusPlus, MinusPlus.Rev())
}

func TestKindFirstSecond(t *testing.T) {
	assert.Equal(t, Plus, PlusMinus.First())
	assert.Equal(t, Minus, PlusMinus.Second())
	assert.Equal(t, Minus, MinusPlus.First())
	assert.Equal(t, Plus, MinusPlus.Second())
}

func TestEach(t *testing.T) {
	var offsets []int
	Each([]byte("ACGTAC"), 4, func(idx int, km Kmer) { offsets = append(offsets, idx) })
	assert.Equal(t, []int{0, 1, 2}, offsets)

	var none []int
	Each([]byte("AC"), 4, func(idx int, km Kmer) { none = append(none, idx) })
	assert.Nil(t, none)
}

func TestHasExactRepeat(t *testing.T) {
	assert.True(t, HasExactRepeat([]byte("ACGTACGT"), 4))
	assert.False(t, HasExactRepeat([]byte("ACGTTGCA"), 4))
}

func TestHasApproxRepeat(t *testing.T) {
	// "ACGT" vs "ACGA" differ by one base.
	assert.True(t, HasApproxRepeat([]byte("ACGTACGA"), 4, 1))
	assert.False(t, HasApproxRepeat([]byte("ACGTACGA"), 4, 0))
}

func TestIsRepeatHeavy(t *testing.T) {
	assert.True(t, IsRepeatHeavy([]byte("ACGTACGT"), 4, 0))
	assert.False(t, IsRepeatHeavy([]byte("ACGTTGCA"), 4, 0))
}
