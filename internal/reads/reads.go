// Package reads extracts the trimmed read records the graph builder and
// genotyper consume from raw BAM/CRAM alignments, per spec.md §3's read
// record definition and its 5'/3' trimming rule.
package reads

import (
	seahash "blainsmith.com/go/seahash"
	"github.com/biogo/hts/sam"
)

// Sample tags a read by which input BAM it came from.
type Sample uint8

const (
	Tumor Sample = iota
	Normal
)

func (s Sample) String() string {
	if s == Tumor {
		return "TUMOR"
	}
	return "NORMAL"
}

// Strand is the alignment orientation of a read.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
)

// Read is the trimmed record described in spec.md §3: a sample-tagged
// window of sequence and base qualities, already cleaned of leading/
// trailing N, non-canonical, or low-quality bases.
type Read struct {
	Sample    Sample
	Name      string
	ContigIdx int
	Start0    int // 0-based start of the (trimmed) aligned span on the reference
	Flags     sam.Flags
	MapQual   byte
	Seq       []byte // upper-case A/C/G/T/N, trimmed
	BaseQuals []byte // phred, same length as Seq

	// Tags, retained when present on the source alignment (spec.md §6).
	MD string
	HP int
	HasHP bool
	BX string
	HasBX bool
}

// Strand returns the read's alignment orientation.
func (r *Read) Strand() Strand {
	if r.Flags&sam.Reverse != 0 {
		return Reverse
	}
	return Forward
}

// DedupKey returns the (read_name, sample_tag) key used by the graph
// builder to avoid double-counting per-sample support across overlapping
// k-mers of the same read (spec.md §4.2 step two), hashed with seahash for
// a compact map key.
func DedupKey(name string, sample Sample) uint64 {
	buf := make([]byte, 0, len(name)+1)
	buf = append(buf, name...)
	buf = append(buf, byte(sample))
	return seahash.Sum64(buf)
}

// FromAlignment builds a Read from a sam.Record, trimming from both ends
// while the base is 'N', non-canonical, or below minBaseQual, and returns
// ok=false if the remaining length is below minLength (the maximum k in
// play, per spec.md §3).
func FromAlignment(rec *sam.Record, sample Sample, minBaseQual, minLength int) (Read, bool) {
	seq := rec.Seq.Expand()
	qual := rec.Qual

	lo, hi := 0, len(seq)
	isBad := func(i int) bool {
		b := seq[i]
		if b != 'A' && b != 'C' && b != 'G' && b != 'T' {
			return true
		}
		if i < len(qual) && int(qual[i]) < minBaseQual {
			return true
		}
		return false
	}
	for lo < hi && isBad(lo) {
		lo++
	}
	for hi > lo && isBad(hi-1) {
		hi--
	}
	if hi-lo < minLength {
		return Read{}, false
	}

	trimmedSeq := make([]byte, hi-lo)
	copy(trimmedSeq, seq[lo:hi])
	var trimmedQual []byte
	if len(qual) >= hi {
		trimmedQual = make([]byte, hi-lo)
		copy(trimmedQual, qual[lo:hi])
	} else {
		trimmedQual = make([]byte, hi-lo)
	}

	contigIdx := -1
	if rec.Ref != nil {
		contigIdx = rec.Ref.ID()
	}

	r := Read{
		Sample:    sample,
		Name:      rec.Name,
		ContigIdx: contigIdx,
		Start0:    rec.Pos + lo,
		Flags:     rec.Flags,
		MapQual:   byte(rec.MapQ),
		Seq:       trimmedSeq,
		BaseQuals: trimmedQual,
	}
	if aux := rec.AuxFields.Get(sam.NewTag("MD")); aux != nil {
		r.MD, _ = aux.Value().(string)
	}
	if aux := rec.AuxFields.Get(sam.NewTag("HP")); aux != nil {
		switch v := aux.Value().(type) {
		case int8:
			r.HP, r.HasHP = int(v), true
		case uint8:
			r.HP, r.HasHP = int(v), true
		case int16:
			r.HP, r.HasHP = int(v), true
		case uint16:
			r.HP, r.HasHP = int(v), true
		case int32:
			r.HP, r.HasHP = int(v), true
		case uint32:
			r.HP, r.HasHP = int(v), true
		}
	}
	if aux := rec.AuxFields.Get(sam.NewTag("BX")); aux != nil {
		if v, ok := aux.Value().(string); ok {
			r.BX, r.HasBX = v, true
		}
	}
	return r, true
}
