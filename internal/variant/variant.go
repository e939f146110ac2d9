// Package variant implements the candidate-variant record, its VCF
// rendering, and the process-wide deduplicating VariantStore of spec.md
// §4.7.
package variant

import (
	"fmt"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/nextgenseq/somavar/internal/genostats"
	"github.com/nextgenseq/somavar/internal/transcript"
)

// hashKey is the fixed all-zero 32-byte key used for the variant identity
// hash (spec.md §3: "hash it stably ... fixed seeds"). A fixed key makes
// the hash a pure function of (chrom,pos,ref,alt) across runs and workers.
var hashKey [highwayhash.Size]byte

// State is the tagged sum VariantState ∈ {NONE, NORMAL, TUMOR, SHARED}
// (spec.md §9 "Polymorphism over ... variant state").
type State uint8

const (
	StateNone State = iota
	StateNormal
	StateTumor
	StateShared
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateTumor:
		return "SOMATIC"
	case StateShared:
		return "SHARED"
	default:
		return "NONE"
	}
}

// ClassifyState derives a variant's state from whether each sample carries
// any alt support (spec.md §4.7 "State flags").
func ClassifyState(tumorAlt, normalAlt int) State {
	switch {
	case tumorAlt > 0 && normalAlt > 0:
		return StateShared
	case tumorAlt > 0:
		return StateTumor
	case normalAlt > 0:
		return StateNormal
	default:
		return StateNone
	}
}

// Filter is one bit of the FILTER column bitset (spec.md §4.7).
type Filter uint32

const (
	LowFisherSTR Filter = 1 << iota
	LowFisherScore
	LowCovNormal
	HighCovNormal
	LowCovTumor
	HighCovTumor
	LowVafTumor
	HighVafNormal
	LowAltCntTumor
	HighAltCntNormal
	StrandBias
	MultiHP
)

var filterNames = []struct {
	bit  Filter
	name string
}{
	{LowFisherSTR, "LowFisherSTR"},
	{LowFisherScore, "LowFisherScore"},
	{LowCovNormal, "LowCovNormal"},
	{HighCovNormal, "HighCovNormal"},
	{LowCovTumor, "LowCovTumor"},
	{HighCovTumor, "HighCovTumor"},
	{LowVafTumor, "LowVafTumor"},
	{HighVafNormal, "HighVafNormal"},
	{LowAltCntTumor, "LowAltCntTumor"},
	{HighAltCntNormal, "HighAltCntNormal"},
	{StrandBias, "StrandBias"},
	{MultiHP, "MultiHP"},
}

func (f Filter) String() string {
	if f == 0 {
		return "PASS"
	}
	var names []string
	for _, e := range filterNames {
		if f&e.bit != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, ";")
}

// SampleCall is one sample column's GT:AD:SR:SA:DP (plus :HPR:HPA in 10X
// mode) fields, derived from a genotype.VariantSupport (spec.md §4.6/§4.7).
type SampleCall struct {
	GT         genostats.Genotype
	RefFwd     int
	RefRev     int
	AltFwd     int
	AltRev     int
	Depth      int
	HPRef      int // haplotype-tagged ref count, 10X mode only
	HPAlt      int // haplotype-tagged alt count, 10X mode only
	HasHPCount bool
}

func (s SampleCall) ad() string {
	return fmt.Sprintf("%d,%d", s.RefFwd+s.RefRev, s.AltFwd+s.AltRev)
}

func (s SampleCall) formatField(tenXMode bool) string {
	base := fmt.Sprintf("%s:%s:%d:%d:%d", s.GT, s.ad(), s.RefFwd+s.AltFwd, s.RefRev+s.AltRev, s.Depth)
	if tenXMode {
		return fmt.Sprintf("%s:%d:%d", base, s.HPRef, s.HPAlt)
	}
	return base
}

// Variant is one candidate variant's identity and genome coordinates,
// grounded on spec.md §3's "variant identity" record:
// (chrom, pos1, ref_allele, alt_allele, kind, len, k_used).
type Variant struct {
	Chrom     string
	ContigIdx int
	Pos1      int // 1-based, after anchor-base adjustment for non-SNV
	RefAllele string
	AltAllele string
	Kind      transcript.Kind
	KUsed     int
	STRUnit   string
	STRCopies int
	HasSTR    bool
}

// Len is the allele-length delta for an indel, and the reference allele
// length when both alleles have the same length (SNV, MNP), per spec.md
// §4.7 TYPE/LEN.
func (v Variant) Len() int {
	d := len(v.AltAllele) - len(v.RefAllele)
	if d < 0 {
		return -d
	}
	if d == 0 {
		return len(v.RefAllele)
	}
	return d
}

// ID returns the variant's stable 64-bit identity hash over
// (chrom,pos,ref,alt), used as the VariantStore dedup key (spec.md §3).
func (v Variant) ID() uint64 {
	h, err := highwayhash.New64(hashKey[:])
	if err != nil {
		panic(err) // hashKey is always the correct fixed size
	}
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s", v.Chrom, v.Pos1, v.RefAllele, v.AltAllele)
	return h.Sum64()
}

// FromTranscript builds a Variant from one extracted transcript, applying
// the non-SNV anchor-base prefix and POS decrement of spec.md §4.7.
func FromTranscript(chrom string, contigIdx int, t transcript.Transcript, kUsed int) Variant {
	v := Variant{
		Chrom:     chrom,
		ContigIdx: contigIdx,
		Pos1:      t.GenomePos + 1,
		RefAllele: t.RefAllele,
		AltAllele: t.AltAllele,
		Kind:      t.Kind,
		KUsed:     kUsed,
	}
	if t.Kind != transcript.SNV {
		v.Pos1--
		v.RefAllele = string(t.PrevRefBase) + t.RefAllele
		v.AltAllele = string(t.PrevAltBase) + t.AltAllele
	}
	if t.STR.Found {
		v.HasSTR = true
		v.STRUnit = t.STR.Unit
		v.STRCopies = t.STR.Copies
	}
	return v
}

// Call is one fully-scored variant record ready for VCF emission: identity,
// state, quality, filters, and the two sample columns.
type Call struct {
	Variant
	State      State
	Qual       float64
	StrandBias float64
	Filters    Filter
	Normal     SampleCall
	Tumor      SampleCall
	TenXMode   bool
}

// TotalCoverage is the (tumor+normal) depth used by the VariantStore merge
// rule (spec.md §4.7 "keep the entry whose total coverage is higher").
func (c Call) TotalCoverage() int {
	return c.Normal.Depth + c.Tumor.Depth
}

// VCFLine renders one tab-separated VCF data line, omitted entirely if the
// state is NONE (spec.md §4.7: "no alt anywhere (dropped before emission)").
func (c Call) VCFLine() (string, bool) {
	if c.State == StateNone {
		return "", false
	}
	info := c.infoField()
	return fmt.Sprintf("%s\t%d\t.\t%s\t%s\t%.2f\t%s\t%s\tGT:AD:SR:SA:DP%s\t%s\t%s",
		c.Chrom, c.Pos1, c.RefAllele, c.AltAllele, c.Qual, c.Filters.String(), info,
		tenXFormatSuffix(c.TenXMode),
		c.Normal.formatField(c.TenXMode), c.Tumor.formatField(c.TenXMode)), true
}

func tenXFormatSuffix(tenX bool) string {
	if tenX {
		return ":HPR:HPA"
	}
	return ""
}

func (c Call) infoField() string {
	parts := []string{
		c.State.String(),
		fmt.Sprintf("FETS=%.2f", c.Qual),
		fmt.Sprintf("TYPE=%s", c.Kind),
		fmt.Sprintf("LEN=%d", c.Len()),
		fmt.Sprintf("KMERSIZE=%d", c.KUsed),
		fmt.Sprintf("SB=%.2f", c.StrandBias),
	}
	if c.HasSTR {
		parts = append(parts, fmt.Sprintf("MS=%d:%s", c.STRCopies*len(c.STRUnit), c.STRUnit))
	}
	return strings.Join(parts, ";")
}

// ApplyFilters sets every FILTER bit that p's thresholds (spec.md §6 CLI
// surface) fail against c's scored fields.
func (c *Call) ApplyFilters(minFisher, minSTRFisher, minTmrVAF, maxNmlVAF float64,
	minTmrCov, minNmlCov, maxTmrCov, maxNmlCov, minStrandCnt, minTmrAltCnt, maxNmlAltCnt int) {
	var f Filter
	if c.HasSTR {
		if c.Qual < minSTRFisher {
			f |= LowFisherSTR
		}
	} else if c.Qual < minFisher {
		f |= LowFisherScore
	}
	if c.Normal.Depth < minNmlCov {
		f |= LowCovNormal
	}
	if c.Normal.Depth > maxNmlCov {
		f |= HighCovNormal
	}
	if c.Tumor.Depth < minTmrCov {
		f |= LowCovTumor
	}
	if c.Tumor.Depth > maxTmrCov {
		f |= HighCovTumor
	}
	tumorAlt := c.Tumor.AltFwd + c.Tumor.AltRev
	normalAlt := c.Normal.AltFwd + c.Normal.AltRev
	if c.Tumor.Depth > 0 && float64(tumorAlt)/float64(c.Tumor.Depth) < minTmrVAF {
		f |= LowVafTumor
	}
	if c.Normal.Depth > 0 && float64(normalAlt)/float64(c.Normal.Depth) > maxNmlVAF {
		f |= HighVafNormal
	}
	if tumorAlt < minTmrAltCnt {
		f |= LowAltCntTumor
	}
	if normalAlt > maxNmlAltCnt {
		f |= HighAltCntNormal
	}
	if minStrandCnt > 0 && (c.Tumor.AltFwd < minStrandCnt || c.Tumor.AltRev < minStrandCnt) {
		f |= StrandBias
	}
	c.Filters = f
}
