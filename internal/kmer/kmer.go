// Package kmer implements the canonicalised fixed-length sequence type that
// anchors the de Bruijn graph (spec.md §3): a Kmer is the lexicographically
// smaller of a sequence and its reverse complement, carrying a sign
// recording which orientation that was, and a stable 64-bit identifier used
// as the node key throughout internal/graph.
package kmer

import (
	"bytes"

	farm "github.com/dgryski/go-farm"
	"github.com/nextgenseq/somavar/biosimd"
)

// Sign records whether a Kmer's default_seq equals the sequence it was built
// from (Plus) or its reverse complement (Minus).
type Sign int8

const (
	Plus Sign = iota
	Minus
)

func (s Sign) String() string {
	if s == Plus {
		return "+"
	}
	return "-"
}

// Flip returns the opposite sign.
func (s Sign) Flip() Sign {
	if s == Plus {
		return Minus
	}
	return Plus
}

// Kmer is a canonicalised length-k sequence: default_seq is the
// lexicographically smaller of seq and revcomp(seq); sign records which one
// that was relative to the orientation the Kmer was constructed from.
// Equality and hashing are both defined purely on default_seq.
type Kmer struct {
	defaultSeq string
	sign       Sign
	id         uint64
}

// New canonicalises seq (which must be upper-case A/C/G/T, length k) into a
// Kmer. The returned sign is Plus iff seq is already the lexicographically
// smaller orientation.
func New(seq []byte) Kmer {
	rc := make([]byte, len(seq))
	biosimd.ReverseComp8NoValidate(rc, seq)
	if bytes.Compare(seq, rc) <= 0 {
		s := string(seq)
		return Kmer{defaultSeq: s, sign: Plus, id: farm.Hash64([]byte(s))}
	}
	s := string(rc)
	return Kmer{defaultSeq: s, sign: Minus, id: farm.Hash64([]byte(s))}
}

// Seq returns the canonical (default) sequence.
func (k Kmer) Seq() string { return k.defaultSeq }

// Sign returns the orientation sign.
func (k Kmer) Sign() Sign { return k.sign }

// ID returns the stable 64-bit identifier of default_seq, used as the node
// key in internal/graph.
func (k Kmer) ID() uint64 { return k.id }

// Len returns the kmer length.
func (k Kmer) Len() int { return len(k.defaultSeq) }

// Equal reports whether two Kmers share the same default_seq.
func (k Kmer) Equal(other Kmer) bool { return k.defaultSeq == other.defaultSeq }

// Kind is the relative orientation pair stored on a graph edge between two
// canonical kmers, per spec.md §3: {++, +-, -+, --}.
type Kind uint8

const (
	PlusPlus Kind = iota
	PlusMinus
	MinusPlus
	MinusMinus
)

func (k Kind) String() string {
	switch k {
	case PlusPlus:
		return "++"
	case PlusMinus:
		return "+-"
	case MinusPlus:
		return "-+"
	case MinusMinus:
		return "--"
	default:
		return "?"
	}
}

// First returns the orientation sign the edge's origin kmer was recorded
// with.
func (k Kind) First() Sign {
	if k == PlusPlus || k == PlusMinus {
		return Plus
	}
	return Minus
}

// Second returns the orientation sign the edge's destination kmer was
// recorded with; this is the sign to read the destination node's default
// sequence in when walking a path across this edge.
func (k Kind) Second() Sign {
	if k == PlusPlus || k == MinusPlus {
		return Plus
	}
	return Minus
}

// Rev returns the mirror orientation used on the reverse edge held by the
// destination node: rev(++) = --, rev(--) = ++, rev(+-) = +-, rev(-+) = -+.
func (k Kind) Rev() Kind {
	switch k {
	case PlusPlus:
		return MinusMinus
	case MinusMinus:
		return PlusPlus
	default:
		return k
	}
}

// KindOf determines the edge kind between two consecutive read-orientation
// kmers ki, kj given their canonical Signs.
func KindOf(ki, kj Kmer) Kind {
	switch {
	case ki.sign == Plus && kj.sign == Plus:
		return PlusPlus
	case ki.sign == Plus && kj.sign == Minus:
		return PlusMinus
	case ki.sign == Minus && kj.sign == Plus:
		return MinusPlus
	default:
		return MinusMinus
	}
}

// Each calls fn with every consecutive length-k canonical Kmer in seq, in
// left-to-right order.
func Each(seq []byte, k int, fn func(idx int, km Kmer)) {
	if len(seq) < k {
		return
	}
	for i := 0; i+k <= len(seq); i++ {
		fn(i, New(seq[i:i+k]))
	}
}

// HasExactRepeat reports whether seq contains two distinct length-k
// substrings that are identical, which disqualifies k as the assembly word
// size for this reference window (spec.md §4.2).
func HasExactRepeat(seq []byte, k int) bool {
	seen := make(map[string]struct{})
	for i := 0; i+k <= len(seq); i++ {
		s := string(seq[i : i+k])
		if _, ok := seen[s]; ok {
			return true
		}
		seen[s] = struct{}{}
	}
	return false
}

// HasApproxRepeat reports whether seq contains two length-k substrings
// (at distinct offsets) within Hamming distance maxMismatch of each other.
func HasApproxRepeat(seq []byte, k, maxMismatch int) bool {
	n := len(seq) - k + 1
	if n < 2 {
		return false
	}
	subs := make([][]byte, n)
	for i := 0; i < n; i++ {
		subs[i] = seq[i : i+k]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if hamming(subs[i], subs[j]) <= maxMismatch {
				return true
			}
		}
	}
	return false
}

func hamming(a, b []byte) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
			if d > len(a) {
				return d
			}
		}
	}
	return d
}

// IsRepeatHeavy reports whether k should be skipped for this reference
// window per spec.md §4.2 step one.
func IsRepeatHeavy(refWindow []byte, k, maxMismatch int) bool {
	return HasExactRepeat(refWindow, k) || HasApproxRepeat(refWindow, k, maxMismatch)
}
