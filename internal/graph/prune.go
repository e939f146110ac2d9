package graph

import "github.com/nextgenseq/somavar/internal/kmer"

// pruneLowCoverage implements spec.md §4.3 step one: delete any
// non-reference node whose total sample support is below minNodeCov or
// whose support divided by average window coverage is below minCovRatio.
// Reference-labelled nodes are never removed here (anchor selection, which
// also protects nodes, runs later on the surviving graph).
func pruneLowCoverage(g *Graph, minNodeCov int, minCovRatio float64, avgCov float64) {
	var toRemove []uint64
	for id, n := range g.Nodes {
		if n.Label.Has(LabelReference) {
			continue
		}
		cov := n.TotalCov()
		if cov < minNodeCov {
			toRemove = append(toRemove, id)
			continue
		}
		if avgCov > 0 && float64(cov)/avgCov < minCovRatio {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		removeNode(g, id)
	}
}

// removeNode deletes a node and every edge referencing it (including the
// mirrors held by its former neighbors).
func removeNode(g *Graph, id uint64) {
	n, ok := g.Nodes[id]
	if !ok {
		return
	}
	for _, e := range n.Edges {
		if e.Dst == id {
			continue
		}
		if nb, ok := g.Nodes[e.Dst]; ok {
			nb.removeEdgesTo(id)
		}
	}
	delete(g.Nodes, id)
}

// removeTips implements spec.md §4.3 step two: iteratively remove dead-end
// nodes (at most one edge) that are not reference-labelled (removing a
// reference node would sever the backbone anchor selection depends on) and
// are not the mock source/sink, together with the chain collectTipChain
// returns for each. Passes repeat until one removes nothing, so a
// non-reference dead-end branch is removed whatever its length; maxTipLen
// bounds only how many nodes one chain removal takes.
func removeTips(g *Graph, maxTipLen int) {
	for {
		removedAny := false
		for id, n := range g.Nodes {
			if id == SourceID || id == SinkID || n.Label.Has(LabelReference) {
				continue
			}
			if len(n.Edges) > 1 {
				continue // not a dead end
			}
			chain := collectTipChain(g, n, maxTipLen)
			if chain == nil {
				continue
			}
			for _, cid := range chain {
				removeNode(g, cid)
			}
			removedAny = true
		}
		if !removedAny {
			return
		}
	}
}

// collectTipChain returns start and, when start's single neighbour is a
// non-reference node with exactly two edges and maxTipLen allows a second
// node, that neighbour; the walk stops there. The chain never holds more
// than maxTipLen nodes (at least one), and the result is never nil.
func collectTipChain(g *Graph, start *Node, maxTipLen int) []uint64 {
	chain := []uint64{start.ID}
	cur := start
	for len(cur.Edges) == 1 && len(chain) < maxTipLen {
		next, ok := g.Nodes[cur.Edges[0].Dst]
		if !ok || next.Label.Has(LabelReference) {
			break
		}
		chain = append(chain, next.ID)
		cur = next
		if len(cur.Edges) != 2 {
			break
		}
	}
	if len(chain) <= maxTipLen {
		return chain
	}
	return nil
}

// keepReferenceComponent implements spec.md §4.3 step three: label
// connected components by BFS over the undirected adjacency and discard
// every node outside the component holding the most reference-labelled
// nodes (the component the assembled haplotypes will anchor to).
func keepReferenceComponent(g *Graph) {
	visited := make(map[uint64]int)
	componentRefCount := map[int]int{}
	nextComponent := 0

	for id := range g.Nodes {
		if _, seen := visited[id]; seen {
			continue
		}
		comp := nextComponent
		nextComponent++
		queue := []uint64{id}
		visited[id] = comp
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			n := g.Nodes[cur]
			if n.Label.Has(LabelReference) {
				componentRefCount[comp]++
			}
			for _, e := range n.Edges {
				if _, seen := visited[e.Dst]; !seen {
					if _, ok := g.Nodes[e.Dst]; ok {
						visited[e.Dst] = comp
						queue = append(queue, e.Dst)
					}
				}
			}
		}
	}

	best, bestCount := -1, -1
	for comp, count := range componentRefCount {
		if count > bestCount {
			best, bestCount = comp, count
		}
	}
	for id, comp := range visited {
		g.Nodes[id].ComponentID = comp
		if comp != best {
			removeNode(g, id)
		}
	}
}

// compressChains implements spec.md §4.3 step four: merge maximal chains of
// nodes u -> v where u has exactly one outgoing edge, v has exactly one
// edge leading back to u (so v's only other neighbor continues the chain),
// u != v, and the edge is not a self-mirror. The merged node's sequence is
// seq(u) concatenated with seq(v) minus its first (k-1) bases (since
// adjacent k-mers overlap by k-1); counts become a length-weighted harmonic mean per
// strand/sample, labels union, and edges at the chain's ends are inherited
// from u's other edges and v's other edges respectively.
func compressChains(g *Graph) {
	for {
		merged := false
		for id, u := range g.Nodes {
			if id == SourceID || id == SinkID || len(u.Edges) != 1 {
				continue
			}
			e := u.Edges[0]
			if e.Dst == u.ID || e.Dst == SourceID || e.Dst == SinkID {
				continue
			}
			v, ok := g.Nodes[e.Dst]
			if !ok || len(v.Edges) != 2 {
				continue
			}
			if !hasEdgeTo(v, u.ID) {
				continue
			}
			mergeChainPair(g, u, v, e.Kind)
			merged = true
			break // restart: the map mutated underneath us
		}
		if !merged {
			return
		}
	}
}

func hasEdgeTo(n *Node, dst uint64) bool {
	for _, e := range n.Edges {
		if e.Dst == dst {
			return true
		}
	}
	return false
}

func mergeChainPair(g *Graph, u, v *Node, kind kmer.Kind) {
	k := g.K
	uSeq, vSeq := u.Seq(), v.Seq()
	mergedSeq := uSeq + vSeq[k-1:]
	mergedKmer := kmer.New([]byte(mergedSeq[:k])) // representative id anchors the merged node's identity to its leading k-mer
	merged := newNode(mergedKmer.ID(), mergedKmer)
	merged.seq = mergedSeq // carry the full chain, not just the k-length identity k-mer
	merged.Label = u.Label | v.Label
	merged.Counts = harmonicMergeCounts(u.Counts, v.Counts, len(uSeq), len(vSeq))

	// Inherit u's edges (other than the one into v) on the "u side", and
	// v's edges (other than the mirror back to u) on the "v side".
	for _, e2 := range u.Edges {
		if e2.Dst != v.ID {
			merged.Edges = append(merged.Edges, e2)
		}
	}
	for _, e2 := range v.Edges {
		if e2.Dst != u.ID {
			merged.Edges = append(merged.Edges, e2)
		}
	}

	delete(g.Nodes, u.ID)
	delete(g.Nodes, v.ID)
	g.Nodes[merged.ID] = merged

	// Repoint any neighbor that referenced u or v at the merged node.
	for _, e2 := range merged.Edges {
		if nb, ok := g.Nodes[e2.Dst]; ok && nb.ID != merged.ID {
			nb.removeEdgesTo(u.ID)
			nb.removeEdgesTo(v.ID)
			nb.addEdge(merged.ID, e2.Kind.Rev())
		}
	}
}

func harmonicMergeCounts(a, b [2][2]int, lenA, lenB int) [2][2]int {
	var out [2][2]int
	total := lenA + lenB
	if total == 0 {
		return out
	}
	for s := 0; s < 2; s++ {
		for st := 0; st < 2; st++ {
			if a[s][st] == 0 || b[s][st] == 0 {
				out[s][st] = a[s][st] + b[s][st]
				continue
			}
			// Length-weighted harmonic mean of the two counts.
			num := float64(total)
			den := float64(lenA)/float64(a[s][st]) + float64(lenB)/float64(b[s][st])
			out[s][st] = int(num / den)
		}
	}
	return out
}

// hasCycle reports whether a directed cycle remains among non-self edges in
// g, using DFS colouring. Self-mirror edges (u -> u) are an explicitly
// permitted graph feature (spec.md §3) and are not treated as cycles.
func hasCycle(g *Graph) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[uint64]int, len(g.Nodes))
	var visit func(id uint64) bool
	visit = func(id uint64) bool {
		color[id] = gray
		n := g.Nodes[id]
		for _, e := range n.Edges {
			if e.Dst == id {
				continue
			}
			switch color[e.Dst] {
			case gray:
				return true
			case white:
				if visit(e.Dst) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range g.Nodes {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// chooseAnchors implements spec.md §4.4: the source anchor is the first
// reference k-mer in window order whose node exists, is REFERENCE-labelled,
// and has total support >= minAnchorCov (it is necessarily in the surviving
// component since keepReferenceComponent already discarded the rest); the
// sink anchor is the last such k-mer.
func chooseAnchors(g *Graph, refWindow []byte, k int, minAnchorCov int) (source, sink uint64, ok bool) {
	var sourceID, sinkID uint64
	haveSource, haveSink := false, false
	for i := 0; i+k <= len(refWindow); i++ {
		km := kmer.New(refWindow[i : i+k])
		n, exists := g.Nodes[km.ID()]
		if !exists || !n.Label.Has(LabelReference) || n.TotalCov() < minAnchorCov {
			continue
		}
		if !haveSource {
			sourceID, haveSource = n.ID, true
		}
		sinkID, haveSink = n.ID, true
	}
	return sourceID, sinkID, haveSource && haveSink
}
