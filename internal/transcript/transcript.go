// Package transcript walks a ref-vs-alt haplotype alignment into variant
// transcripts with genome coordinates, per spec.md §4.5.
package transcript

import (
	"github.com/nextgenseq/somavar/internal/hapalign"
)

// Kind is the tagged sum TranscriptKind ∈ {SNV, INS, DEL, MNP} named in the
// "Polymorphism over transcript kind" design note (spec.md §9); no dynamic
// dispatch, exhaustive switches throughout.
type Kind uint8

const (
	SNV Kind = iota
	INS
	DEL
	MNP
)

func (k Kind) String() string {
	switch k {
	case SNV:
		return "SNV"
	case INS:
		return "INS"
	case DEL:
		return "DEL"
	case MNP:
		return "MNP"
	default:
		return "?"
	}
}

// STR describes a tandem repeat found near a transcript.
type STR struct {
	Unit   string
	Copies int
	Found  bool
}

// Transcript is one variant candidate extracted from a haplotype alignment.
type Transcript struct {
	Kind      Kind
	RefAllele string
	AltAllele string
	// GenomePos is the 0-based genome coordinate of the transcript's first
	// ref base: window_start0 + ref_start_offset + ref_idx_at_transcript_start.
	GenomePos int
	// PrevRefBase/PrevAltBase carry the base immediately preceding the
	// transcript, for VCF anchor-base emission on indels.
	PrevRefBase byte
	PrevAltBase byte
	STR         STR
	// RefHapStart/RefHapEnd and AltHapStart/AltHapEnd are the transcript's
	// half-open byte spans within the reference and alt haplotype
	// sequences respectively, used to build a genotype.Locus for
	// re-aligning reads against this transcript's allele (spec.md §4.6).
	RefHapStart, RefHapEnd int
	AltHapStart, AltHapEnd int
}

// STRParams bounds the tandem-repeat scan around a transcript (spec.md
// §4.5 "STR annotation").
type STRParams struct {
	MaxSTRDist    int
	MaxSTRUnitLen int
	MinSTRUnits   int
	MinSTRLength  int
}

// Extract walks aln's trimmed column sequence and emits one Transcript per
// maximal run of non-match columns, dropping any whose allele-length delta
// exceeds maxIndelLength. windowStart0 is the window's genome start
// coordinate; refHaplotype is the full reference haplotype sequence used
// for STR scanning.
func Extract(aln hapalign.Alignment, windowStart0 int, refHaplotype []byte, maxIndelLength int, strParams STRParams) []Transcript {
	var out []Transcript

	refIdx, altIdx := 0, 0
	var open *building
	var prevRefBase, prevAltBase byte

	closeOpen := func() {
		if open == nil {
			return
		}
		t := open.finish(refIdx, altIdx)
		if abs(len(t.AltAllele)-len(t.RefAllele)) <= maxIndelLength {
			t.STR = scanSTR(refHaplotype, t.GenomePos-windowStart0, len(t.RefAllele), strParams)
			out = append(out, t)
		}
		open = nil
	}

	for _, col := range aln.Columns {
		switch col.Kind {
		case hapalign.ColMatch:
			closeOpen()
			refIdx++
			altIdx++
			prevRefBase, prevAltBase = col.RefBase, col.AltBase

		case hapalign.ColMismatch:
			if open == nil {
				open = newBuilding(SNV, windowStart0+aln.RefStartOffset+refIdx, prevRefBase, prevAltBase, refIdx, altIdx)
			} else if open.kind == SNV {
				open.kind = MNP // second adjacent mismatch promotes SNV to MNP
			} else if open.kind != MNP {
				open.kind = MNP // mixed adjacency promotes to COMPLEX, modeled as MNP
			}
			open.appendRef(col.RefBase)
			open.appendAlt(col.AltBase)
			refIdx++
			altIdx++
			prevRefBase, prevAltBase = col.RefBase, col.AltBase

		case hapalign.ColRefGap: // insertion into alt
			if open == nil {
				open = newBuilding(INS, windowStart0+aln.RefStartOffset+refIdx, prevRefBase, prevAltBase, refIdx, altIdx)
			} else if open.kind != INS {
				open.kind = MNP
			}
			open.appendAlt(col.AltBase)
			altIdx++
			prevAltBase = col.AltBase

		case hapalign.ColAltGap: // deletion from alt
			if open == nil {
				open = newBuilding(DEL, windowStart0+aln.RefStartOffset+refIdx, prevRefBase, prevAltBase, refIdx, altIdx)
			} else if open.kind != DEL {
				open.kind = MNP
			}
			open.appendRef(col.RefBase)
			refIdx++
			prevRefBase = col.RefBase
		}
	}
	closeOpen()
	return out
}

type building struct {
	kind             Kind
	genomePos        int
	prevRef, prevAlt byte
	ref, alt         []byte
	refHapStart      int
	altHapStart      int
}

func newBuilding(kind Kind, genomePos int, prevRef, prevAlt byte, refIdx, altIdx int) *building {
	return &building{kind: kind, genomePos: genomePos, prevRef: prevRef, prevAlt: prevAlt, refHapStart: refIdx, altHapStart: altIdx}
}

func (b *building) appendRef(base byte) { b.ref = append(b.ref, base) }
func (b *building) appendAlt(base byte) { b.alt = append(b.alt, base) }

func (b *building) finish(refIdx, altIdx int) Transcript {
	kind := b.kind
	if len(b.ref) > 1 && len(b.alt) > 1 && len(b.ref) != len(b.alt) {
		kind = MNP // COMPLEX, represented as MNP per the tagged-sum design note
	} else if kind == SNV && len(b.ref) > 1 {
		kind = MNP
	}
	return Transcript{
		Kind:        kind,
		RefAllele:   string(b.ref),
		AltAllele:   string(b.alt),
		GenomePos:   b.genomePos,
		PrevRefBase: b.prevRef,
		PrevAltBase: b.prevAlt,
		RefHapStart: b.refHapStart,
		RefHapEnd:   refIdx,
		AltHapStart: b.altHapStart,
		AltHapEnd:   altIdx,
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// scanSTR scans ±MaxSTRDist bases around the transcript's reference offset
// for a tandem repeat satisfying the unit-length/copy-count/total-length
// thresholds (spec.md §4.5).
func scanSTR(refHaplotype []byte, refOffset, refLen int, p STRParams) STR {
	lo := refOffset - p.MaxSTRDist
	if lo < 0 {
		lo = 0
	}
	hi := refOffset + refLen + p.MaxSTRDist
	if hi > len(refHaplotype) {
		hi = len(refHaplotype)
	}
	window := refHaplotype[lo:hi]

	for unitLen := 1; unitLen <= p.MaxSTRUnitLen; unitLen++ {
		for start := 0; start+unitLen <= len(window); start++ {
			unit := window[start : start+unitLen]
			copies := 1
			pos := start + unitLen
			for pos+unitLen <= len(window) && string(window[pos:pos+unitLen]) == string(unit) {
				copies++
				pos += unitLen
			}
			totalLen := copies * unitLen
			if copies >= p.MinSTRUnits && totalLen >= p.MinSTRLength {
				return STR{Unit: string(unit), Copies: copies, Found: true}
			}
		}
	}
	return STR{}
}
