package graph

import (
	"fmt"
	"io"
)

// WriteDOT serializes g in Graphviz DOT format: nodes are coloured by
// label (red=TUMOR, blue=NORMAL, black=REFERENCE-only), edges annotated
// with their orientation kind. This is the debug-only graph dump gated by
// --graph-dir (spec.md §6 "optional per-window graph dump directory").
func WriteDOT(w io.Writer, g *Graph, windowIdx int) error {
	if _, err := fmt.Fprintf(w, "digraph window_%d {\n", windowIdx); err != nil {
		return err
	}
	for id, n := range g.Nodes {
		label, color := nodeDotStyle(id, n)
		if _, err := fmt.Fprintf(w, "  n%d [label=%q color=%q];\n", id, label, color); err != nil {
			return err
		}
	}
	for id, n := range g.Nodes {
		for _, e := range n.Edges {
			if _, err := fmt.Fprintf(w, "  n%d -> n%d [label=%q];\n", id, e.Dst, e.Kind.String()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func nodeDotStyle(id uint64, n *Node) (label, color string) {
	switch id {
	case SourceID:
		return "SOURCE", "green"
	case SinkID:
		return "SINK", "green"
	}
	switch {
	case n.Label.Has(LabelTumor) && !n.Label.Has(LabelNormal):
		color = "red"
	case n.Label.Has(LabelNormal) && !n.Label.Has(LabelTumor):
		color = "blue"
	case n.Label.Has(LabelTumor) && n.Label.Has(LabelNormal):
		color = "purple"
	default:
		color = "black"
	}
	return n.Seq(), color
}
