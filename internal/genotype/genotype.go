// Package genotype implements the read-vs-haplotype genotyper of
// spec.md §4.6: every read is aligned against every haplotype, ranked, and
// walked to confirm allele support for each candidate variant, aggregating
// per-(variant,sample) VariantSupport with phred-likelihood genotyping and
// strand-bias scoring.
package genotype

import (
	"sort"

	"github.com/nextgenseq/somavar/internal/genostats"
	"github.com/nextgenseq/somavar/internal/readalign"
	"github.com/nextgenseq/somavar/internal/reads"
)

// Allele distinguishes which side of a variant a read's coverage supports.
type Allele uint8

const (
	Ref Allele = iota
	Alt
)

// Locus is a variant's allele extent expressed in two coordinate systems:
// its span within the reference haplotype (for recognising REF support)
// and its span within the specific alt haplotype it was called from (for
// recognising ALT support). HaplotypeIdx identifies that alt haplotype
// (haplotypes are indexed with the reference haplotype at 0, per
// spec.md §3).
type Locus struct {
	HaplotypeIdx int
	RefStart, RefEnd int
	AltStart, AltEnd int
}

// VariantSupport aggregates, per (variant, sample), the four quality lists
// keyed by (allele, strand) described in spec.md §4.6.
type VariantSupport struct {
	quals        [2][2][]float64 // [allele][strand]
	seen         map[dedupKey]bool
	hpTaggedCnt  [2]int // [allele], count of supporting reads that carried an HP tag (10X mode)
}

type dedupKey struct {
	name   string
	strand reads.Strand
}

func newVariantSupport() *VariantSupport {
	return &VariantSupport{seen: make(map[dedupKey]bool)}
}

func (vs *VariantSupport) add(name string, strand reads.Strand, allele Allele, quals []byte, hasHP bool) {
	k := dedupKey{name: name, strand: strand}
	if vs.seen[k] {
		return
	}
	vs.seen[k] = true
	vs.quals[allele][strand] = append(vs.quals[allele][strand], meanQual(quals))
	if hasHP {
		vs.hpTaggedCnt[allele]++
	}
}

// HPTaggedCount returns the number of allele-supporting reads that carried
// an HP tag (spec.md §6's 10X mode HPR/HPA fields).
func (vs *VariantSupport) HPTaggedCount(allele Allele) int { return vs.hpTaggedCnt[allele] }

func meanQual(quals []byte) float64 {
	if len(quals) == 0 {
		return 0
	}
	sum := 0
	for _, q := range quals {
		sum += int(q)
	}
	return float64(sum) / float64(len(quals))
}

// Count returns the number of reads supporting (allele,strand).
func (vs *VariantSupport) Count(allele Allele, strand reads.Strand) int {
	return len(vs.quals[allele][strand])
}

// TotalRef, TotalAlt, Depth, VAF are the derived quantities of spec.md §4.6.
func (vs *VariantSupport) TotalRef() int {
	return vs.Count(Ref, reads.Forward) + vs.Count(Ref, reads.Reverse)
}
func (vs *VariantSupport) TotalAlt() int {
	return vs.Count(Alt, reads.Forward) + vs.Count(Alt, reads.Reverse)
}
func (vs *VariantSupport) Depth() int { return vs.TotalRef() + vs.TotalAlt() }
func (vs *VariantSupport) VAF() float64 {
	d := vs.Depth()
	if d == 0 {
		return 0
	}
	return float64(vs.TotalAlt()) / float64(d)
}

// StrandBiasPhred computes the phred of the two-sided Fisher exact test on
// the 2x2 table (ref_fwd,alt_fwd; ref_rev,alt_rev).
func (vs *VariantSupport) StrandBiasPhred() float64 {
	p := genostats.FisherExactTwoSided(
		vs.Count(Ref, reads.Forward), vs.Count(Alt, reads.Forward),
		vs.Count(Ref, reads.Reverse), vs.Count(Alt, reads.Reverse))
	return genostats.PhredFromP(p)
}

// Genotype computes the PL vector, called genotype, and genotype quality.
func (vs *VariantSupport) Genotype() (pl [3]float64, call genostats.Genotype, gq float64) {
	return genostats.PhredLikelihoods(vs.Depth(), vs.TotalAlt())
}

// rankedAlignment is one haplotype alignment of a read, used for the
// (identity desc, score desc, haplotype index desc) ranking in spec.md
// §4.6 so ties prefer an ALT haplotype over REF (haplotype 0).
type rankedAlignment struct {
	haplotypeIdx int
	aln          readalign.Alignment
}

// AlignToHaplotypes aligns one read against every haplotype (ref at index
// 0, then alts) and returns them ranked best-first.
func AlignToHaplotypes(readSeq []byte, haplotypes [][]byte) ([]rankedAlignment, error) {
	out := make([]rankedAlignment, 0, len(haplotypes))
	for i, hap := range haplotypes {
		aln, err := readalign.Align(hap, readSeq)
		if err != nil {
			continue
		}
		out = append(out, rankedAlignment{haplotypeIdx: i, aln: aln})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.aln.Identity != b.aln.Identity {
			return a.aln.Identity > b.aln.Identity
		}
		if a.aln.Score != b.aln.Score {
			return a.aln.Score > b.aln.Score
		}
		return a.haplotypeIdx > b.haplotypeIdx
	})
	return out, nil
}

// Confirms reports whether some identity range in aln fully covers
// [start,end), or the read is fully contained within the range when the
// allele is longer than the read (spec.md §4.6's "full-read containment
// branch").
func Confirms(aln readalign.Alignment, start, end int) (queryStart int, ok bool) {
	for _, rng := range aln.Ranges {
		if rng.RefStart <= start && rng.RefEnd >= end {
			return rng.QueryStart + (start - rng.RefStart), true
		}
	}
	if end-start > aln.QueryEnd-aln.QueryStart {
		for _, rng := range aln.Ranges {
			if rng.QueryStart <= aln.QueryStart && rng.QueryEnd >= aln.QueryEnd {
				return aln.QueryStart, true
			}
		}
	}
	return 0, false
}

// Genotyper re-aligns every read in a window against every haplotype and
// aggregates VariantSupport per (variant, sample).
type Genotyper struct {
	Haplotypes [][]byte
	Loci       []Locus
	support    map[int]map[reads.Sample]*VariantSupport // variant index -> sample -> support
}

// NewGenotyper builds a Genotyper over the given haplotypes (ref at index
// 0) and the Locus of each candidate variant.
func NewGenotyper(haplotypes [][]byte, loci []Locus) *Genotyper {
	g := &Genotyper{Haplotypes: haplotypes, Loci: loci, support: make(map[int]map[reads.Sample]*VariantSupport)}
	for i := range loci {
		g.support[i] = make(map[reads.Sample]*VariantSupport)
	}
	return g
}

func (g *Genotyper) supportFor(variantIdx int, sample reads.Sample) *VariantSupport {
	m := g.support[variantIdx]
	vs, ok := m[sample]
	if !ok {
		vs = newVariantSupport()
		m[sample] = vs
	}
	return vs
}

// GenotypeRead aligns one read against every haplotype and, walking
// alignments best-first, attributes it to the first variant/allele each
// confirms (spec.md §4.6: "the read supports that allele of that variant").
func (g *Genotyper) GenotypeRead(r reads.Read) error {
	ranked, err := AlignToHaplotypes(r.Seq, g.Haplotypes)
	if err != nil {
		return err
	}
	for _, ra := range ranked {
		for vi, locus := range g.Loci {
			if locus.HaplotypeIdx == 0 {
				continue // ref haplotype carries no variant of its own
			}
			if ra.haplotypeIdx == 0 {
				if qs, ok := Confirms(ra.aln, locus.RefStart, locus.RefEnd); ok {
					g.supportFor(vi, r.Sample).add(r.Name, r.Strand(), Ref, qualSpan(r, qs, locus.RefEnd-locus.RefStart), r.HasHP)
				}
				continue
			}
			if ra.haplotypeIdx != locus.HaplotypeIdx {
				continue
			}
			if qs, ok := Confirms(ra.aln, locus.AltStart, locus.AltEnd); ok {
				g.supportFor(vi, r.Sample).add(r.Name, r.Strand(), Alt, qualSpan(r, qs, locus.AltEnd-locus.AltStart), r.HasHP)
			}
		}
	}
	return nil
}

func qualSpan(r reads.Read, start, length int) []byte {
	end := start + length
	if start < 0 {
		start = 0
	}
	if end > len(r.BaseQuals) {
		end = len(r.BaseQuals)
	}
	if start >= end {
		return nil
	}
	return r.BaseQuals[start:end]
}

// Support returns the accumulated VariantSupport for (variantIdx, sample),
// or nil if no read has supported it.
func (g *Genotyper) Support(variantIdx int, sample reads.Sample) *VariantSupport {
	m := g.support[variantIdx]
	if m == nil {
		return nil
	}
	return m[sample]
}
