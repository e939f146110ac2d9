package graph

import (
	"github.com/nextgenseq/somavar/internal/kmer"
	"github.com/nextgenseq/somavar/biosimd"
)

// Haplotype is a sequence obtained by walking a path through the graph.
// The reference haplotype is always index 0 in any haplotype slice built
// by a caller (spec.md §3).
type Haplotype struct {
	Seq string
}

type edgeKey struct {
	from, to uint64
	kind     kmer.Kind
}

type pathBuilder struct {
	node        uint64
	seq         []byte
	score       int
	touchedSink bool
	edges       []edgeKey
}

func (b pathBuilder) clone() pathBuilder {
	nb := b
	nb.seq = append([]byte(nil), b.seq...)
	nb.edges = append([]edgeKey(nil), b.edges...)
	return nb
}

// PathEnumerator implements the bounded-BFS anchored path search of
// spec.md §4.4. It retains, across calls to Next, the set of edges
// returned by previous calls so later calls prefer genuinely new edges; it
// is not safe for concurrent use (each window owns its own instance, per
// spec.md §5 "each worker owns its ... graph allocations").
type PathEnumerator struct {
	g          *Graph
	returned   map[edgeKey]bool
	maxPathLen int
	bfsLimit   int
}

// NewPathEnumerator builds an enumerator over g bounded by maxPathLen
// (bases) and bfsLimit (queue pops), per the graph-traversal-limit and
// max-path-length parameters in spec.md §6/§9.
func NewPathEnumerator(g *Graph, maxPathLen, bfsLimit int) *PathEnumerator {
	return &PathEnumerator{g: g, returned: make(map[edgeKey]bool), maxPathLen: maxPathLen, bfsLimit: bfsLimit}
}

// Next returns the next distinct haplotype path per spec.md §4.4's
// algorithm, or ok=false once enumeration is exhausted.
func (pe *PathEnumerator) Next() (Haplotype, bool) {
	if !pe.g.HasAnchors {
		return Haplotype{}, false
	}
	queue := []pathBuilder{{node: SourceID}}
	var best *pathBuilder
	visits := 0

	for len(queue) > 0 && visits < pe.bfsLimit {
		visits++
		b := queue[0]
		queue = queue[1:]

		if len(b.seq) > pe.maxPathLen {
			continue
		}
		if b.touchedSink && b.score > 0 {
			found := b
			best = &found
			break
		}

		node, ok := pe.g.Nodes[b.node]
		if !ok {
			continue
		}
		for _, e := range node.Edges {
			if e.Dst == b.node {
				continue // self-mirror: not a path step
			}
			if e.Dst == SinkID {
				curBest := -1
				if best != nil {
					curBest = best.score
				}
				if b.score > curBest {
					nb := b.clone()
					nb.touchedSink = true
					queue = append(queue, nb)
				}
				continue
			}
			if e.Dst == SourceID {
				continue
			}
			key := edgeKey{from: b.node, to: e.Dst, kind: e.Kind}
			nb := pe.extend(b, e)
			if !pe.returned[key] {
				nb.score++
			}
			nb.edges = append(nb.edges, key)
			queue = append(queue, nb)
		}
	}

	if best == nil {
		return Haplotype{}, false
	}
	for _, k := range best.edges {
		pe.returned[k] = true
	}
	return Haplotype{Seq: string(best.seq)}, true
}

func (pe *PathEnumerator) extend(b pathBuilder, e Edge) pathBuilder {
	nb := b.clone()
	nb.node = e.Dst
	dest := pe.g.Nodes[e.Dst]
	oriented := orientedSeq(dest, e.Kind.Second())
	if len(nb.seq) == 0 {
		nb.seq = append(nb.seq, oriented...)
	} else {
		nb.seq = append(nb.seq, newBases(oriented, pe.g.K)...)
	}
	return nb
}

// orientedSeq returns n's contributed sequence read in the given
// orientation: as-is if Plus, reverse-complemented if Minus. n.Seq() is
// length k for an un-compressed node, longer for one produced by chain
// compression (spec.md §4.3 step 4).
func orientedSeq(n *Node, sign kmer.Sign) []byte {
	seq := []byte(n.Seq())
	if sign == kmer.Plus {
		return seq
	}
	rc := make([]byte, len(seq))
	biosimd.ReverseComp8NoValidate(rc, seq)
	return rc
}

// newBases returns the bases oriented contributes beyond its k-1-base
// overlap with the preceding node in a walk: 1 base for an un-compressed
// node, the full un-collapsed chain tail for a compressed one.
func newBases(oriented []byte, k int) []byte {
	return oriented[k-1:]
}

// ReferenceHaplotype walks the reference-labelled backbone from the source
// to the sink anchor, which spec.md §4.4 defines as haplotype index 0.
func ReferenceHaplotype(g *Graph) (Haplotype, bool) {
	if !g.HasAnchors {
		return Haplotype{}, false
	}
	visited := map[uint64]bool{SourceID: true}
	var walk func(id uint64, seq []byte) ([]byte, bool)
	walk = func(id uint64, seq []byte) ([]byte, bool) {
		if id == g.SinkAnchor {
			return seq, true
		}
		node := g.Nodes[id]
		for _, e := range node.Edges {
			if e.Dst == SourceID || e.Dst == id || visited[e.Dst] {
				continue
			}
			if e.Dst == SinkID {
				continue
			}
			dest := g.Nodes[e.Dst]
			if dest == nil || !dest.Label.Has(LabelReference) {
				continue
			}
			visited[e.Dst] = true
			oriented := orientedSeq(dest, e.Kind.Second())
			var next []byte
			if len(seq) == 0 {
				next = append([]byte(nil), oriented...)
			} else {
				next = append(append([]byte(nil), seq...), newBases(oriented, g.K)...)
			}
			if result, ok := walk(e.Dst, next); ok {
				return result, true
			}
			visited[e.Dst] = false
		}
		return nil, false
	}
	srcNode := g.Nodes[g.SourceAnchor]
	seq := []byte(srcNode.Seq())
	visited[g.SourceAnchor] = true
	if result, ok := walk(g.SourceAnchor, seq); ok {
		return Haplotype{Seq: string(result)}, true
	}
	return Haplotype{}, false
}
