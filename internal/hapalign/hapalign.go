// Package hapalign performs the fixed-scoring semi-global alignment of an
// alt haplotype against the reference haplotype (spec.md §4.5), wrapping
// github.com/biogo/biogo/align's affine-gap Smith-Waterman aligner the way
// kortschak-loopy's cmd/reefer and cmd/catch build and call it: a
// substitution matrix over alphabet.DNAgapped, linear.Seq inputs, and a
// walk of the returned []feat.Pair segments.
package hapalign

import (
	"github.com/biogo/biogo/align"
	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/feat"
	"github.com/biogo/biogo/seq/linear"
	"github.com/pkg/errors"
)

const (
	scoreMatch    = 2
	scoreMismatch = -4
	gapOpen       = -8
	gapExtend     = -1
)

// ColumnKind classifies one column of a walked alignment.
type ColumnKind uint8

const (
	ColMatch ColumnKind = iota
	ColMismatch
	ColRefGap // insertion into alt: alt has a base, ref does not
	ColAltGap // deletion from alt: ref has a base, alt does not
)

// Column is one position of the trimmed, walked alignment, carrying the
// base(s) present (0 for a gap) so internal/transcript can emit precise
// anchor bases.
type Column struct {
	Kind    ColumnKind
	RefBase byte // 0 if ColRefGap
	AltBase byte // 0 if ColAltGap
}

// Alignment is the trimmed, column-walked result of aligning an alt
// haplotype to the reference haplotype.
type Alignment struct {
	// RefStartOffset is the number of leading ref bases consumed before the
	// alt haplotype begins aligning (the leading-ref-gap count trimmed off,
	// per spec.md §4.5); transcript genome coordinates are computed from
	// window_start0 + RefStartOffset + ref_idx_at_transcript_start.
	RefStartOffset int
	Columns        []Column
}

func newAffineAligner() align.SWAffine {
	alpha := alphabet.DNAgapped
	n := alpha.Len()
	matrix := make(align.Linear, n)
	for i := range matrix {
		row := make([]int, n)
		for j := range row {
			row[j] = scoreMismatch
		}
		row[i] = scoreMatch
		matrix[i] = row
	}
	gapSym, _ := alpha.IndexOf(alphabet.Gap)
	for i := range matrix {
		matrix[gapSym][i] = gapOpen
		matrix[i][gapSym] = gapOpen
	}
	return align.SWAffine{Matrix: matrix, GapOpen: gapOpen, GapExtend: gapExtend}
}

// Align performs the semi-global ref-vs-alt alignment and returns the
// trimmed column walk: leading and trailing gap-only columns are dropped,
// and RefStartOffset records how many leading reference bases that trim
// consumed.
func Align(ref, alt []byte) (Alignment, error) {
	refSeq := linear.NewSeq("ref", alphabet.BytesToLetters(ref), alphabet.DNAgapped)
	altSeq := linear.NewSeq("alt", alphabet.BytesToLetters(alt), alphabet.DNAgapped)

	aligner := newAffineAligner()
	pairs, err := aligner.Align(refSeq, altSeq)
	if err != nil {
		return Alignment{}, errors.Wrap(err, "hapalign: affine alignment failed")
	}
	cols := walkPairs(ref, alt, pairs)
	return trimGapOnlyEnds(cols), nil
}

func walkPairs(ref, alt []byte, pairs []feat.Pair) []Column {
	var cols []Column
	refPos, altPos := 0, 0
	for _, p := range pairs {
		feats := p.Features()
		refFeat, altFeat := feats[0], feats[1]
		refGapLen := refFeat.Start() - refPos
		altGapLen := altFeat.Start() - altPos
		for altGapLen > 0 && refGapLen > 0 {
			// Shouldn't normally happen for an affine aligner's segment
			// output, but handle it defensively as a base-for-base run.
			cols = append(cols, columnFor(ref[refPos], alt[altPos]))
			refPos++
			altPos++
			refGapLen--
			altGapLen--
		}
		for refGapLen > 0 {
			cols = append(cols, Column{Kind: ColAltGap, RefBase: ref[refPos]})
			refPos++
			refGapLen--
		}
		for altGapLen > 0 {
			cols = append(cols, Column{Kind: ColRefGap, AltBase: alt[altPos]})
			altPos++
			altGapLen--
		}

		blockLen := refFeat.End() - refFeat.Start()
		for i := 0; i < blockLen; i++ {
			cols = append(cols, columnFor(ref[refPos], alt[altPos]))
			refPos++
			altPos++
		}
	}
	for refPos < len(ref) && altPos < len(alt) {
		cols = append(cols, columnFor(ref[refPos], alt[altPos]))
		refPos++
		altPos++
	}
	for refPos < len(ref) {
		cols = append(cols, Column{Kind: ColAltGap, RefBase: ref[refPos]})
		refPos++
	}
	for altPos < len(alt) {
		cols = append(cols, Column{Kind: ColRefGap, AltBase: alt[altPos]})
		altPos++
	}
	return cols
}

func columnFor(refBase, altBase byte) Column {
	if refBase == altBase {
		return Column{Kind: ColMatch, RefBase: refBase, AltBase: altBase}
	}
	return Column{Kind: ColMismatch, RefBase: refBase, AltBase: altBase}
}

func trimGapOnlyEnds(cols []Column) Alignment {
	start := 0
	refStartOffset := 0
	for start < len(cols) && cols[start].Kind == ColAltGap {
		start++
		refStartOffset++
	}
	end := len(cols)
	for end > start && cols[end-1].Kind == ColAltGap {
		end--
	}
	return Alignment{RefStartOffset: refStartOffset, Columns: append([]Column(nil), cols[start:end]...)}
}
