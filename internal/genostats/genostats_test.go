package genostats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFisherExactTwoSidedBalancedTableIsNotSignificant(t *testing.T) {
	p := FisherExactTwoSided(10, 10, 10, 10)
	assert.True(t, p > 0.5, "balanced table should have a large p-value, got %v", p)
}

func TestFisherExactTwoSidedSkewedTableIsSignificant(t *testing.T) {
	p := FisherExactTwoSided(20, 0, 0, 20)
	assert.True(t, p < 0.001, "fully skewed table should be significant, got %v", p)
}

func TestFisherExactTwoSidedSymmetric(t *testing.T) {
	// swapping rows and swapping columns shouldn't change the two-sided p-value.
	p1 := FisherExactTwoSided(5, 3, 2, 8)
	p2 := FisherExactTwoSided(3, 5, 8, 2)
	assert.InDelta(t, p1, p2, 1e-9)
}

func TestFisherExactTwoSidedBounded(t *testing.T) {
	p := FisherExactTwoSided(0, 0, 0, 0)
	assert.True(t, p >= 0 && p <= 1)
}

func TestPhredFromP(t *testing.T) {
	assert.InDelta(t, 0, PhredFromP(1), 1e-9)
	assert.InDelta(t, 10, PhredFromP(0.1), 1e-9)
	assert.Equal(t, 255.0, PhredFromP(0))
	assert.Equal(t, 255.0, PhredFromP(1e-100))
}

func TestGenotypeString(t *testing.T) {
	assert.Equal(t, "0/0", RefHom.String())
	assert.Equal(t, "0/1", Het.String())
	assert.Equal(t, "1/1", AltHom.String())
}

func TestPhredLikelihoodsZeroDepth(t *testing.T) {
	pl, call, gq := PhredLikelihoods(0, 0)
	assert.Equal(t, [3]float64{0, 0, 0}, pl)
	assert.Equal(t, RefHom, call)
	assert.Equal(t, 0.0, gq)
}

func TestPhredLikelihoodsAllRefCallsRefHom(t *testing.T) {
	pl, call, gq := PhredLikelihoods(30, 0)
	assert.Equal(t, RefHom, call)
	assert.Equal(t, 0.0, pl[RefHom])
	assert.True(t, gq > 0)
}

func TestPhredLikelihoodsAllAltCallsAltHom(t *testing.T) {
	pl, call, _ := PhredLikelihoods(30, 30)
	assert.Equal(t, AltHom, call)
	assert.Equal(t, 0.0, pl[AltHom])
}

func TestPhredLikelihoodsHalfAltCallsHet(t *testing.T) {
	_, call, _ := PhredLikelihoods(30, 15)
	assert.Equal(t, Het, call)
}

func TestPhredLikelihoodsNeverNegativeOrOverflow(t *testing.T) {
	pl, _, _ := PhredLikelihoods(1000, 500)
	for _, v := range pl {
		assert.True(t, v >= 0 && v <= 255 && !math.IsNaN(v))
	}
}
