package graph

import (
	"github.com/nextgenseq/somavar/internal/kmer"
	"github.com/nextgenseq/somavar/internal/reads"
	"github.com/nextgenseq/somavar/internal/somaerr"
)

// BuildParams collects the subset of params.Params the graph builder needs,
// so this package does not depend on the CLI flag surface directly.
type BuildParams struct {
	MinK, MaxK      int
	MaxRptMismatch  int
	MinNodeCov      int
	MinCovRatio     float64
	MinAnchorCov    int
	MinGraphTipLen  int // dead-end branch length (nodes) eligible for tip removal
}

// DefaultMinGraphTipLen is used when BuildParams.MinGraphTipLen is zero.
const DefaultMinGraphTipLen = 2

// Build constructs a coloured de Bruijn graph for a window, choosing the
// smallest viable k per spec.md §4.2, pruning/compressing it (§4.3), and
// resolving source/sink anchors (§4.4). windowIdx/region are used only for
// error annotation.
func Build(refWindow []byte, rs []reads.Read, p BuildParams, windowIdx int, region string) (*Graph, error) {
	tipLen := p.MinGraphTipLen
	if tipLen == 0 {
		tipLen = DefaultMinGraphTipLen
	}
	avgCov := averageCoverage(rs, len(refWindow))

	for k := p.MinK; k <= p.MaxK; k += 2 {
		if kmer.IsRepeatHeavy(refWindow, k, p.MaxRptMismatch) {
			continue
		}
		g := newGraph(k)
		addSampleNodes(g, rs, k)
		markReference(g, refWindow, k)

		pruneLowCoverage(g, p.MinNodeCov, p.MinCovRatio, avgCov)
		removeTips(g, tipLen)
		keepReferenceComponent(g)
		compressChains(g)

		if hasCycle(g) {
			continue // bump k and rebuild, per spec.md §4.3
		}

		source, sink, ok := chooseAnchors(g, refWindow, k, p.MinAnchorCov)
		if !ok {
			continue // anchors missing at this k; try the next
		}
		linkMockAnchors(g, source, sink)
		return g, nil
	}
	return nil, somaerr.NoKChosen(windowIdx, region)
}

func averageCoverage(rs []reads.Read, windowLen int) float64 {
	if len(rs) == 0 || windowLen == 0 {
		return 0
	}
	total := 0
	for _, r := range rs {
		total += len(r.Seq)
	}
	return float64(total) / float64(windowLen)
}

// addSampleNodes implements spec.md §4.2 step two: for every consecutive
// k-mer pair along each read, upsert nodes, tag sample label, merge quality,
// add the mirrored edge, and increment per-sample per-strand counts once on
// every k-mer node of the read (the first k-mer of the leading pair, then
// the second k-mer of each pair), skipping a read whose (read_name,
// sample_tag) has already been counted.
func addSampleNodes(g *Graph, rs []reads.Read, k int) {
	counted := make(map[uint64]bool) // dedup key -> already counted this read
	for _, r := range rs {
		if len(r.Seq) < k {
			continue
		}
		dedupKey := reads.DedupKey(r.Name, r.Sample)
		already := counted[dedupKey]
		si, sti := sampleIndex(r.Sample), strandIndex(r.Strand())

		var prevKmer kmer.Kmer
		havePrev := false
		for i := 0; i+k <= len(r.Seq); i++ {
			km := kmer.New(r.Seq[i : i+k])
			n := g.upsert(km)
			n.Label |= labelFor(r.Sample)
			accumulateQuality(n, r, i, k)

			if !already {
				n.Counts[si][sti]++
			}

			if havePrev {
				kind := kmer.KindOf(prevKmer, km)
				g.addMirroredEdge(prevKmer.ID(), km.ID(), kind)
			}
			prevKmer, havePrev = km, true
		}
		counted[dedupKey] = true
	}
}

func labelFor(s reads.Sample) Label {
	if s == reads.Tumor {
		return LabelTumor
	}
	return LabelNormal
}

func accumulateQuality(n *Node, r reads.Read, offset, k int) {
	for j := 0; j < k; j++ {
		if offset+j >= len(r.BaseQuals) {
			break
		}
		n.QualSum[j] += float64(r.BaseQuals[offset+j])
		n.QualN[j]++
	}
}

// markReference implements spec.md §4.2 step three: walk the reference
// window's canonical k-mers; any existing node matching one gains the
// REFERENCE label; add edges between consecutive reference k-mers that
// already exist as nodes.
func markReference(g *Graph, refWindow []byte, k int) {
	var prevKmer kmer.Kmer
	havePrev := false
	for i := 0; i+k <= len(refWindow); i++ {
		km := kmer.New(refWindow[i : i+k])
		if n, ok := g.Nodes[km.ID()]; ok {
			n.Label |= LabelReference
			if havePrev {
				if _, ok := g.Nodes[prevKmer.ID()]; ok {
					kind := kmer.KindOf(prevKmer, km)
					g.addMirroredEdge(prevKmer.ID(), km.ID(), kind)
				}
			}
		}
		prevKmer, havePrev = km, true
	}
}

func linkMockAnchors(g *Graph, source, sink uint64) {
	g.Nodes[SourceID] = &Node{ID: SourceID}
	g.Nodes[SinkID] = &Node{ID: SinkID}
	g.addMirroredEdge(SourceID, source, kmer.PlusPlus)
	g.addMirroredEdge(sink, SinkID, kmer.PlusPlus)
	g.SourceAnchor, g.SinkAnchor, g.HasAnchors = source, sink, true
}
