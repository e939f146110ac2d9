// Package graph implements the coloured de Bruijn graph described in
// spec.md §3-§4: nodes keyed by canonical k-mer id, edges carrying an
// orientation kind and mirrored on both endpoints, and the builder/
// pruner/compressor/path-enumerator pipeline that turns a window's reads
// and reference sequence into candidate haplotypes.
//
// Per the "Cyclic ownership of graph" design note (spec.md §9), nodes never
// hold pointers to each other: all cross-references are 64-bit ids resolved
// through the Graph arena, so mutating one node (e.g. during compression)
// never invalidates a reference held by another.
package graph

import (
	"github.com/nextgenseq/somavar/internal/kmer"
	"github.com/nextgenseq/somavar/internal/reads"
)

// Label is a bitset over {REFERENCE, NORMAL, TUMOR}.
type Label uint8

const (
	LabelReference Label = 1 << iota
	LabelNormal
	LabelTumor
)

func (l Label) Has(bit Label) bool { return l&bit != 0 }

// Reserved mock node ids anchoring source/sink search (spec.md §3). Real
// k-mer ids come from a 64-bit content hash and collide with these only in
// the astronomically unlikely case excluded by spec's identity model; we
// accept that in exchange for not needing a parallel id space.
const (
	SourceID uint64 = ^uint64(0)
	SinkID   uint64 = ^uint64(0) - 1
)

// Edge is a directed, oriented adjacency. Every non-self edge is stored on
// both endpoints, with Kind mirrored on the reverse copy (spec.md §3).
type Edge struct {
	Dst  uint64
	Kind kmer.Kind
}

// Node is one vertex per distinct canonical k-mer, plus the two mock
// SOURCE/SINK anchors (which carry no sequence and are excluded from all
// counts).
type Node struct {
	ID    uint64
	Kmer  kmer.Kmer
	Label Label
	Edges []Edge

	// Counts[sample][strand] is per-sample, per-strand read support.
	Counts [2][2]int

	// QualSum/QualN accumulate, per base offset along the k-mer, the sum and
	// count of base qualities seen at that offset, for a mean quality
	// profile.
	QualSum []float64
	QualN   []int

	ComponentID int

	// seq is this node's default (plus-orientation) contributed sequence.
	// For an un-compressed node it's exactly Kmer.Seq() (length k); chain
	// compression (spec.md §4.3 step 4) extends it past k so the node can
	// still carry every base of the chain it replaces. Kmer stays a
	// length-k identity handle; seq is what gets walked.
	seq string
}

func newNode(id uint64, km kmer.Kmer) *Node {
	k := km.Len()
	return &Node{
		ID:      id,
		Kmer:    km,
		QualSum: make([]float64, k),
		QualN:   make([]int, k),
		seq:     km.Seq(),
	}
}

// TotalCov returns the node's total tumor+normal read support across both
// strands.
func (n *Node) TotalCov() int {
	t := 0
	for s := 0; s < 2; s++ {
		for st := 0; st < 2; st++ {
			t += n.Counts[s][st]
		}
	}
	return t
}

func (n *Node) addEdge(dst uint64, kind kmer.Kind) {
	for _, e := range n.Edges {
		if e.Dst == dst && e.Kind == kind {
			return
		}
	}
	n.Edges = append(n.Edges, Edge{Dst: dst, Kind: kind})
}

func (n *Node) removeEdgesTo(dst uint64) {
	out := n.Edges[:0]
	for _, e := range n.Edges {
		if e.Dst != dst {
			out = append(out, e)
		}
	}
	n.Edges = out
}

// Graph is the arena: all node cross-references are ids resolved through
// Nodes. K is the word size this graph was built at.
type Graph struct {
	Nodes map[uint64]*Node
	K     int

	SourceAnchor uint64
	SinkAnchor   uint64
	HasAnchors   bool
}

func newGraph(k int) *Graph {
	return &Graph{Nodes: make(map[uint64]*Node), K: k}
}

// upsert returns the existing node for km, creating it if absent.
func (g *Graph) upsert(km kmer.Kmer) *Node {
	n, ok := g.Nodes[km.ID()]
	if !ok {
		n = newNode(km.ID(), km)
		g.Nodes[km.ID()] = n
	}
	return n
}

// addMirroredEdge adds (u,kind)->v on u and its mirror on v, unless u==v
// and kind is a self-mirroring orientation, per spec.md §3.
func (g *Graph) addMirroredEdge(u, v uint64, kind kmer.Kind) {
	un, vn := g.Nodes[u], g.Nodes[v]
	if un == nil || vn == nil {
		return
	}
	un.addEdge(v, kind)
	if u == v && (kind == kmer.PlusMinus || kind == kmer.MinusPlus) {
		return // self-mirror: stored once
	}
	vn.addEdge(u, kind.Rev())
}

// Seq returns the default (plus-orientation) sequence contributed by this
// node when walked in the Plus direction. Length k for an un-compressed
// node, longer for one produced by chain compression.
func (n *Node) Seq() string { return n.seq }

// sampleIndex maps a reads.Sample to the Counts row.
func sampleIndex(s reads.Sample) int {
	if s == reads.Tumor {
		return 1
	}
	return 0
}

// strandIndex maps a reads.Strand to the Counts column.
func strandIndex(s reads.Strand) int {
	if s == reads.Reverse {
		return 1
	}
	return 0
}
