// Package readalign aligns reads against in-memory synthetic haplotype
// references for genotyping (spec.md §4.6), wrapping
// github.com/biogo/biogo/align's linear-gap Smith-Waterman aligner (the
// short-read-tuned aligner assumed available as a library per spec.md §6)
// and synthesizing the CS-style identity ranges the genotyper needs from
// the returned segment list, the same way internal/hapalign walks affine
// alignment output.
package readalign

import (
	"github.com/biogo/biogo/align"
	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
	"github.com/pkg/errors"
)

const (
	scoreMatch    = 1
	scoreMismatch = -2
	scoreGap      = -3
)

// IdentityRange is a maximal exactly-matching span, in both reference and
// query coordinates, parsed from the alignment's CS-style tag (spec.md
// §4.6).
type IdentityRange struct {
	RefStart, RefEnd     int
	QueryStart, QueryEnd int
}

// Alignment is one read-vs-haplotype alignment result.
type Alignment struct {
	RefStart, RefEnd     int
	QueryStart, QueryEnd int
	Score                int
	Identity             float64 // gap-compressed identity in [0,1]
	Ranges               []IdentityRange
}

func newLinearAligner() align.SW {
	alpha := alphabet.DNAgapped
	n := alpha.Len()
	sw := make(align.SW, n)
	for i := range sw {
		row := make([]int, n)
		for j := range row {
			row[j] = scoreMismatch
		}
		row[i] = scoreMatch
		sw[i] = row
	}
	gapSym, _ := alpha.IndexOf(alphabet.Gap)
	for i := range sw {
		sw[gapSym][i] = scoreGap
		sw[i][gapSym] = scoreGap
	}
	return sw
}

// Align aligns query (a read) against ref (a haplotype sequence, reference
// or alternate) and returns its coordinates, score, gap-compressed
// identity, and identity ranges.
func Align(ref, query []byte) (Alignment, error) {
	refSeq := linear.NewSeq("ref", alphabet.BytesToLetters(ref), alphabet.DNAgapped)
	querySeq := linear.NewSeq("query", alphabet.BytesToLetters(query), alphabet.DNAgapped)

	aligner := newLinearAligner()
	pairs, err := aligner.Align(refSeq, querySeq)
	if err != nil {
		return Alignment{}, errors.Wrap(err, "readalign: alignment failed")
	}
	if len(pairs) == 0 {
		return Alignment{}, errors.New("readalign: empty alignment")
	}

	var ranges []IdentityRange
	matched, total := 0, 0
	score := 0
	first := pairs[0].Features()
	last := pairs[len(pairs)-1].Features()
	refPos, queryPos := first[0].Start(), first[1].Start()

	for _, p := range pairs {
		feats := p.Features()
		refFeat, queryFeat := feats[0], feats[1]
		refGap := refFeat.Start() - refPos
		queryGap := queryFeat.Start() - queryPos
		if refGap > 0 || queryGap > 0 {
			total++ // a gap counts once, whatever its length
		}
		score += refGap*scoreGap + queryGap*scoreGap
		refPos, queryPos = refFeat.Start(), queryFeat.Start()

		blockLen := refFeat.End() - refFeat.Start()
		rangeStart := refPos
		qRangeStart := queryPos
		runStart := -1
		for i := 0; i < blockLen; i++ {
			isMatch := ref[refPos+i] == query[queryPos+i]
			total++
			if isMatch {
				matched++
				score += scoreMatch
				if runStart < 0 {
					runStart = i
				}
			} else {
				score += scoreMismatch
				if runStart >= 0 {
					ranges = append(ranges, IdentityRange{
						RefStart: rangeStart + runStart, RefEnd: rangeStart + i,
						QueryStart: qRangeStart + runStart, QueryEnd: qRangeStart + i,
					})
					runStart = -1
				}
			}
		}
		if runStart >= 0 {
			ranges = append(ranges, IdentityRange{
				RefStart: rangeStart + runStart, RefEnd: rangeStart + blockLen,
				QueryStart: qRangeStart + runStart, QueryEnd: qRangeStart + blockLen,
			})
		}
		refPos += blockLen
		queryPos += blockLen
	}

	identity := 0.0
	if total > 0 {
		identity = float64(matched) / float64(total)
	}
	return Alignment{
		RefStart: first[0].Start(), RefEnd: last[0].End(),
		QueryStart: first[1].Start(), QueryEnd: last[1].End(),
		Score: score, Identity: identity, Ranges: ranges,
	}, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
