// Package assembler composes one window's full micro-assembly pipeline,
// spec.md §4 end to end: read extraction, graph construction, path
// enumeration, haplotype alignment, transcript extraction, genotyping, and
// somatic scoring. MicroAssembler.Process is the unit of work a
// scheduler.Scheduler hands to each worker.
package assembler

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"

	"github.com/nextgenseq/somavar/internal/bamio"
	"github.com/nextgenseq/somavar/internal/genostats"
	"github.com/nextgenseq/somavar/internal/genotype"
	"github.com/nextgenseq/somavar/internal/graph"
	"github.com/nextgenseq/somavar/internal/hapalign"
	"github.com/nextgenseq/somavar/internal/params"
	"github.com/nextgenseq/somavar/internal/reads"
	"github.com/nextgenseq/somavar/internal/refseq"
	"github.com/nextgenseq/somavar/internal/somaerr"
	"github.com/nextgenseq/somavar/internal/transcript"
	"github.com/nextgenseq/somavar/internal/variant"
	"github.com/nextgenseq/somavar/internal/window"
)

// strParams bounds the tandem-repeat scan applied to every transcript
// (spec.md §4.5 "STR annotation"); these are fixed constants rather than
// CLI flags since spec.md §6's flag surface does not expose them.
var strParams = transcript.STRParams{
	MaxSTRDist:    10,
	MaxSTRUnitLen: 6,
	MinSTRUnits:   3,
	MinSTRLength:  6,
}

// MicroAssembler ties together the per-window read provider, the reference,
// and the validated parameter bundle (spec.md §9 "Shared immutable
// parameter bundle"): one MicroAssembler serves every worker goroutine.
// Process keeps its per-window state local; the read provider and the
// reference it shares with other workers serialize their own I/O.
type MicroAssembler struct {
	Reads  *bamio.Provider
	Ref    *refseq.Reference
	Params params.Params
}

// dumpGraphDOT writes g's DOT serialization to dir/window_<idx>.dot when dir
// is non-empty (spec.md §6's "optional per-window graph dump directory"
// debug aid). A write failure here never fails the window; it is silently
// ignored since the dump is a debug aid, not a pipeline output.
func dumpGraphDOT(dir string, g *graph.Graph, windowIdx int) {
	if dir == "" {
		return
	}
	ctx := vcontext.Background()
	f, err := file.Create(ctx, fmt.Sprintf("%s/window_%d.dot", dir, windowIdx))
	if err != nil {
		return
	}
	_ = graph.WriteDOT(f.Writer(ctx), g, windowIdx)
	_ = f.Close(ctx)
}

// New builds a MicroAssembler.
func New(r *bamio.Provider, ref *refseq.Reference, p params.Params) *MicroAssembler {
	return &MicroAssembler{Reads: r, Ref: ref, Params: p}
}

// transcriptOrigin carries the haplotype a transcript was extracted from,
// needed to build its genotype.Locus.
type transcriptOrigin struct {
	t            transcript.Transcript
	haplotypeIdx int
	kUsed        int
}

// Process runs the full pipeline for one window and returns its scored
// variant calls, matching scheduler.Process.
func (m *MicroAssembler) Process(w window.Window) ([]variant.Call, error) {
	tumorReads, normalReads, err := m.Reads.FetchWindow(w.Region, m.Params.MinMappingQual, m.Params.MinBaseQual, m.Params.MaxKmerLength)
	if err != nil {
		return nil, somaerr.WindowLocal(w.Index, w.Region.String(), err)
	}
	allReads := make([]reads.Read, 0, len(tumorReads)+len(normalReads))
	allReads = append(allReads, tumorReads...)
	allReads = append(allReads, normalReads...)
	allReads = capCoverage(allReads, m.Params.MaxWindowCov)
	if len(allReads) == 0 {
		return nil, nil
	}

	refWindow, err := m.Ref.Fetch(w.Contig, uint64(w.Start0), uint64(w.End0))
	if err != nil {
		if refseq.IsTruncated(err) {
			return nil, somaerr.TruncatedReference(w.Index, w.Region.String(), err)
		}
		return nil, somaerr.WindowLocal(w.Index, w.Region.String(), err)
	}

	bp := graph.BuildParams{
		MinK:           m.Params.MinKmerLength,
		MaxK:           m.Params.MaxKmerLength,
		MaxRptMismatch: m.Params.MaxRptMismatch,
		MinNodeCov:     m.Params.MinNodeCov,
		MinCovRatio:    m.Params.MinCovRatio,
		MinAnchorCov:   m.Params.MinAnchorCov,
	}
	g, err := graph.Build([]byte(refWindow), allReads, bp, w.Index, w.Region.String())
	if err != nil {
		return nil, err // already a somaerr.Error (somaerr.NoKChosen)
	}
	dumpGraphDOT(m.Params.GraphDir, g, w.Index)

	refHap, ok := graph.ReferenceHaplotype(g)
	if !ok {
		return nil, nil // no reference backbone survived pruning; nothing to call
	}

	haplotypes := [][]byte{[]byte(refHap.Seq)}
	var origins []transcriptOrigin
	pe := graph.NewPathEnumerator(g, m.Params.WindowSize*4, m.Params.GraphTraversalLimit)
	for {
		hap, ok := pe.Next()
		if !ok {
			break
		}
		if hap.Seq == refHap.Seq {
			continue
		}
		aln, err := hapalign.Align([]byte(refHap.Seq), []byte(hap.Seq))
		if err != nil {
			continue // unalignable alt path; skip it, keep enumerating
		}
		haplotypeIdx := len(haplotypes)
		haplotypes = append(haplotypes, []byte(hap.Seq))
		for _, t := range transcript.Extract(aln, w.Start0, []byte(refHap.Seq), m.Params.MaxIndelLen, strParams) {
			origins = append(origins, transcriptOrigin{t: t, haplotypeIdx: haplotypeIdx, kUsed: g.K})
		}
	}
	if len(origins) == 0 {
		return nil, nil
	}
	origins = dedupTranscripts(origins)

	loci := make([]genotype.Locus, len(origins))
	vs := make([]variant.Variant, len(origins))
	for i, o := range origins {
		loci[i] = genotype.Locus{
			HaplotypeIdx: o.haplotypeIdx,
			RefStart:     o.t.RefHapStart, RefEnd: o.t.RefHapEnd,
			AltStart: o.t.AltHapStart, AltEnd: o.t.AltHapEnd,
		}
		vs[i] = variant.FromTranscript(w.Contig, w.ContigIdx, o.t, o.kUsed)
	}

	genotyper := genotype.NewGenotyper(haplotypes, loci)
	for _, r := range allReads {
		_ = genotyper.GenotypeRead(r) // alignment failures just skip that read's attribution
	}

	calls := make([]variant.Call, 0, len(vs))
	for i, v := range vs {
		tumorSupport := genotyper.Support(i, reads.Tumor)
		normalSupport := genotyper.Support(i, reads.Normal)
		call := buildCall(v, tumorSupport, normalSupport, m.Params)
		if call.State == variant.StateNone {
			continue
		}
		call.ApplyFilters(m.Params.MinFisher, m.Params.MinSTRFisher, m.Params.MinTmrVAF, m.Params.MaxNmlVAF,
			m.Params.MinTmrCov, m.Params.MinNmlCov, m.Params.MaxTmrCov, m.Params.MaxNmlCov,
			m.Params.MinStrandCnt, m.Params.MinTmrAltCnt, m.Params.MaxNmlAltCnt)
		calls = append(calls, call)
	}
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Pos1 < calls[j].Pos1 })
	return calls, nil
}

// buildCall derives a variant.Call's state, somatic QUAL, strand bias, and
// sample columns from its per-sample support (spec.md §4.6/§4.7).
func buildCall(v variant.Variant, tumorSupport, normalSupport *genotype.VariantSupport, p params.Params) variant.Call {
	tumorAlt, normalAlt := 0, 0
	if tumorSupport != nil {
		tumorAlt = tumorSupport.TotalAlt()
	}
	if normalSupport != nil {
		normalAlt = normalSupport.TotalAlt()
	}

	call := variant.Call{
		Variant:  v,
		State:    variant.ClassifyState(tumorAlt, normalAlt),
		TenXMode: p.TenXMode,
		Normal:   sampleCallFrom(normalSupport, p.TenXMode),
		Tumor:    sampleCallFrom(tumorSupport, p.TenXMode),
	}

	// Somatic enrichment score: two-sided Fisher exact test on the 2x2
	// table of (tumor_alt, tumor_ref; normal_alt, normal_ref), per spec.md
	// §4.7's FETS/QUAL field.
	tumorRef := call.Tumor.Depth - tumorAlt
	normalRef := call.Normal.Depth - normalAlt
	p1 := genostats.FisherExactTwoSided(tumorAlt, tumorRef, normalAlt, normalRef)
	call.Qual = genostats.PhredFromP(p1)

	if tumorSupport != nil {
		call.StrandBias = tumorSupport.StrandBiasPhred()
	}
	return call
}

func sampleCallFrom(vs *genotype.VariantSupport, tenXMode bool) variant.SampleCall {
	if vs == nil {
		return variant.SampleCall{}
	}
	_, gt, _ := vs.Genotype()
	sc := variant.SampleCall{
		GT:     gt,
		RefFwd: vs.Count(genotype.Ref, reads.Forward),
		RefRev: vs.Count(genotype.Ref, reads.Reverse),
		AltFwd: vs.Count(genotype.Alt, reads.Forward),
		AltRev: vs.Count(genotype.Alt, reads.Reverse),
		Depth:  vs.Depth(),
	}
	if tenXMode {
		sc.HasHPCount = true
		sc.HPRef = vs.HPTaggedCount(genotype.Ref)
		sc.HPAlt = vs.HPTaggedCount(genotype.Alt)
	}
	return sc
}

// dedupTranscripts collapses transcripts with identical (genome position,
// ref allele, alt allele) extracted from different enumerated paths,
// keeping the first (lowest haplotype index) occurrence.
func dedupTranscripts(origins []transcriptOrigin) []transcriptOrigin {
	type key struct {
		pos      int
		ref, alt string
	}
	seen := make(map[key]bool, len(origins))
	out := origins[:0]
	for _, o := range origins {
		k := key{pos: o.t.GenomePos, ref: o.t.RefAllele, alt: o.t.AltAllele}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	return out
}

// capCoverage bounds assembly cost by deterministically truncating to the
// first maxCov reads (stable-sorted by sample then name) once a window's
// combined read count exceeds --max-window-cov.
func capCoverage(rs []reads.Read, maxCov int) []reads.Read {
	if maxCov <= 0 || len(rs) <= maxCov {
		return rs
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Sample != rs[j].Sample {
			return rs[i].Sample < rs[j].Sample
		}
		return rs[i].Name < rs[j].Name
	})
	return rs[:maxCov]
}
