// Package genostats implements the statistical machinery behind genotyping
// and somatic scoring (spec.md §4.6/§4.7): the binomial phred-likelihood
// genotype model, the two-sided Fisher exact test used for both strand-bias
// and somatic-enrichment scoring, and online coverage statistics.
//
// No pack example carries a Fisher-exact-test library (gonum's stat package
// has no combinatorial hypothesis tests), so the exact-test core is built
// on the standard library's math.Lgamma the way a from-scratch
// log-factorial implementation normally is; see DESIGN.md for the
// no-suitable-library justification.
package genostats

import "math"

// logFactorial returns ln(n!) via the log-gamma function.
func logFactorial(n int) float64 {
	lg, _ := math.Lgamma(float64(n) + 1)
	return lg
}

// hypergeomLogProb returns the log-probability of a 2x2 contingency table
// with the given margins fixed, under the hypergeometric null.
func hypergeomLogProb(a, b, c, d int) float64 {
	n := a + b + c + d
	rowA := a + b
	rowB := c + d
	colA := a + c
	colB := b + d
	return logFactorial(rowA) + logFactorial(rowB) + logFactorial(colA) + logFactorial(colB) -
		logFactorial(n) - logFactorial(a) - logFactorial(b) - logFactorial(c) - logFactorial(d)
}

// FisherExactTwoSided computes the two-sided p-value for the 2x2 table
// [[a,b],[c,d]] by summing the hypergeometric probability of every table
// with the same margins that is no more probable than the observed one.
func FisherExactTwoSided(a, b, c, d int) float64 {
	rowA, rowB := a+b, c+d
	colA := a + c
	n := rowA + rowB

	loA := 0
	if colA-rowB > 0 {
		loA = colA - rowB
	}
	hiA := colA
	if rowA < hiA {
		hiA = rowA
	}

	observed := hypergeomLogProb(a, b, c, d)
	const eps = 1e-7
	pValue := 0.0
	for aa := loA; aa <= hiA; aa++ {
		bb := rowA - aa
		cc := colA - aa
		dd := n - rowA - cc
		if bb < 0 || cc < 0 || dd < 0 {
			continue
		}
		lp := hypergeomLogProb(aa, bb, cc, dd)
		if lp <= observed+eps {
			pValue += math.Exp(lp)
		}
	}
	if pValue > 1 {
		pValue = 1
	}
	return pValue
}

// PhredFromP converts a p-value to a clamped phred score, per the QUAL and
// SB fields in spec.md §4.7.
func PhredFromP(p float64) float64 {
	if p <= 0 {
		return 255
	}
	phred := -10 * math.Log10(p)
	if phred > 255 {
		return 255
	}
	if phred < 0 {
		return 0
	}
	return phred
}
