/*
somavar is a local micro-assembly somatic variant caller: it windows a
tumor/normal BAM pair against a reference FASTA, assembles a small coloured
de Bruijn graph per window, and emits a BGZF-compressed VCF of somatic
calls with a tabix-style sidecar index (<vcf>.svci).
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/nextgenseq/somavar/internal/assembler"
	"github.com/nextgenseq/somavar/internal/bamio"
	"github.com/nextgenseq/somavar/internal/params"
	"github.com/nextgenseq/somavar/internal/refseq"
	"github.com/nextgenseq/somavar/internal/scheduler"
	"github.com/nextgenseq/somavar/internal/somaerr"
	"github.com/nextgenseq/somavar/internal/variant"
	"github.com/nextgenseq/somavar/internal/vcfio"
	"github.com/nextgenseq/somavar/internal/window"
)

var (
	def = params.Default()

	tumorBAM    = flag.String("tumor", "", "Tumor sample BAM/CRAM path (required)")
	normalBAM   = flag.String("normal", "", "Normal sample BAM/CRAM path (required)")
	referenceFA = flag.String("reference", "", "Reference FASTA path; a .fai index must sit alongside it (required)")
	outPrefix   = flag.String("out-prefix", "", "Output path prefix; VCF is written to <out-prefix>.vcf.gz")
	outVCF      = flag.String("out-vcf", "", "Explicit output VCF path, overriding --out-prefix")
	region      = flag.String("region", "", "Restrict calling to one region, as chr, chr:pos, or chr:start-end (1-based, closed)")
	bedFile     = flag.String("bed-file", "", "Restrict calling to the regions in this BED file; mutually exclusive with --region")
	graphDir    = flag.String("graph-dir", "", "If set, dump one Graphviz DOT file per window here (debug aid)")

	padding    = flag.Int("padding", def.Padding, "Bases of padding added to each input region before windowing")
	windowSize = flag.Int("window-size", def.WindowSize, "Maximum window length in bases")
	pctOverlap = flag.Float64("pct-overlap", def.PctOverlap, "Fractional overlap between consecutive windows, in [0.05,0.95]")
	numThreads = flag.Int("num-threads", def.NumThreads, "Worker goroutines; 0 = runtime.NumCPU()")

	minKmerLength       = flag.Int("min-kmer-length", def.MinKmerLength, "Smallest k tried during graph assembly (must be odd)")
	maxKmerLength       = flag.Int("max-kmer-length", def.MaxKmerLength, "Largest k tried during graph assembly (must be odd)")
	maxWindowCov        = flag.Int("max-window-cov", def.MaxWindowCov, "Cap on combined tumor+normal reads assembled per window")
	graphTraversalLimit = flag.Int("graph-traversal-limit", def.GraphTraversalLimit, "Bounded-BFS queue-pop limit for path enumeration")

	minBaseQual    = flag.Int("min-base-qual", def.MinBaseQual, "Minimum base quality; lower bases are trimmed from read ends")
	minMappingQual = flag.Int("min-mapping-qual", def.MinMappingQual, "Minimum read mapping quality")

	minAnchorCov = flag.Int("min-anchor-cov", def.MinAnchorCov, "Minimum coverage for a node to anchor source/sink search")
	minNodeCov   = flag.Int("min-node-cov", def.MinNodeCov, "Minimum total coverage for a graph node to survive pruning")
	minCovRatio  = flag.Float64("min-cov-ratio", def.MinCovRatio, "Minimum node coverage as a fraction of average window coverage")
	maxIndelLen  = flag.Int("max-indel-length", def.MaxIndelLen, "Maximum ref/alt allele length delta a transcript may report")

	maxRptMismatch = flag.Int("max-rpt-mismatch", def.MaxRptMismatch, "Mismatch tolerance used to classify a window's reference as repeat-heavy")

	minFisher    = flag.Float64("min-fisher", def.MinFisher, "Minimum phred-scaled somatic Fisher score (non-STR variants)")
	minSTRFisher = flag.Float64("min-str-fisher", def.MinSTRFisher, "Minimum phred-scaled somatic Fisher score (STR variants)")
	minTmrVAF    = flag.Float64("min-tmr-vaf", def.MinTmrVAF, "Minimum tumor variant allele fraction")
	maxNmlVAF    = flag.Float64("max-nml-vaf", def.MaxNmlVAF, "Maximum normal variant allele fraction")
	minTmrCov    = flag.Int("min-tmr-cov", def.MinTmrCov, "Minimum tumor depth")
	minNmlCov    = flag.Int("min-nml-cov", def.MinNmlCov, "Minimum normal depth")
	maxTmrCov    = flag.Int("max-tmr-cov", def.MaxTmrCov, "Maximum tumor depth")
	maxNmlCov    = flag.Int("max-nml-cov", def.MaxNmlCov, "Maximum normal depth")
	minStrandCnt = flag.Int("min-strand-cnt", def.MinStrandCnt, "Minimum tumor alt reads required on each strand")
	minTmrAltCnt = flag.Int("min-tmr-alt-cnt", def.MinTmrAltCnt, "Minimum tumor alt read count")
	maxNmlAltCnt = flag.Int("max-nml-alt-cnt", def.MaxNmlAltCnt, "Maximum normal alt read count")

	tenXMode        = flag.Bool("tenx-mode", def.TenXMode, "Enable 10X HP/BX-aware haplotype-tagged reporting")
	activeRegionOff = flag.Bool("active-region-off", def.ActiveRegionOff, "Disable the MD-tag active-region pre-filter")
	noContigCheck   = flag.Bool("no-contig-check", def.NoContigCheck, "Skip verifying that the reference and the tumor/normal BAMs share a contig table")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	flag.Parse()

	p := params.Default()
	p.TumorBAM, p.NormalBAM, p.ReferenceFA = *tumorBAM, *normalBAM, *referenceFA
	p.OutPrefix, p.OutVCF = *outPrefix, *outVCF
	p.Region, p.BEDFile, p.GraphDir = *region, *bedFile, *graphDir
	p.Padding, p.WindowSize, p.PctOverlap = *padding, *windowSize, *pctOverlap
	p.NumThreads = *numThreads
	p.MinKmerLength, p.MaxKmerLength = *minKmerLength, *maxKmerLength
	p.MaxWindowCov, p.GraphTraversalLimit = *maxWindowCov, *graphTraversalLimit
	p.MinBaseQual, p.MinMappingQual = *minBaseQual, *minMappingQual
	p.MinAnchorCov, p.MinNodeCov, p.MinCovRatio, p.MaxIndelLen = *minAnchorCov, *minNodeCov, *minCovRatio, *maxIndelLen
	p.MaxRptMismatch = *maxRptMismatch
	p.MinFisher, p.MinSTRFisher = *minFisher, *minSTRFisher
	p.MinTmrVAF, p.MaxNmlVAF = *minTmrVAF, *maxNmlVAF
	p.MinTmrCov, p.MinNmlCov, p.MaxTmrCov, p.MaxNmlCov = *minTmrCov, *minNmlCov, *maxTmrCov, *maxNmlCov
	p.MinStrandCnt, p.MinTmrAltCnt, p.MaxNmlAltCnt = *minStrandCnt, *minTmrAltCnt, *maxNmlAltCnt
	p.TenXMode, p.ActiveRegionOff, p.NoContigCheck = *tenXMode, *activeRegionOff, *noContigCheck

	if err := p.Validate(); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
	if err := run(p); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(1)
	}
}

func run(p params.Params) error {
	ctx := vcontext.Background()

	ref, err := openReference(ctx, p.ReferenceFA)
	if err != nil {
		return err
	}

	windows, err := buildWindows(ref, p)
	if err != nil {
		return err
	}
	log.Printf("somavar: %d windows to process", len(windows))

	provider, err := bamio.Open(p.TumorBAM, p.NormalBAM, p.NoContigCheck)
	if err != nil {
		return err
	}
	defer provider.Close()

	contigs := ref.Contigs()
	contigLens := make([]uint64, len(contigs))
	for i, name := range contigs {
		contigLens[i], err = ref.Len(name)
		if err != nil {
			return err
		}
	}
	if !p.NoContigCheck {
		bamRefs := provider.Header().Refs()
		if len(bamRefs) != len(contigs) {
			return somaerr.Configuration(fmt.Errorf("somavar: reference has %d contigs, BAMs have %d", len(contigs), len(bamRefs)))
		}
		for i, r := range bamRefs {
			if r.Name() != contigs[i] || uint64(r.Len()) != contigLens[i] {
				return somaerr.Configuration(fmt.Errorf("somavar: contig %d: reference %s (%d bp) vs BAM %s (%d bp)", i, contigs[i], contigLens[i], r.Name(), r.Len()))
			}
		}
	}
	writer, err := vcfio.Create(p.OutputVCFPath(), contigs, contigLens, p.TenXMode)
	if err != nil {
		return err
	}
	defer writer.Close()

	asm := assembler.New(provider, ref, p)
	numWorkers := p.NumThreads
	if numWorkers == 0 {
		numWorkers = runtime.NumCPU()
	}
	buffer := scheduler.ComputeBuffer(p.MaxIndelLen, p.WindowSize, stepHint(p))
	sched := scheduler.New(windows, numWorkers, asm.Process, variant.NewStore(), writer, buffer)
	return sched.Run()
}

// stepHint mirrors window.stepSize's rounding without exporting it, solely
// to size the scheduler's flush-lag buffer (spec.md §5's
// `buffer = ceil(4*max(max_indel_length,window_length)/step)`); an
// under-estimate here only makes the buffer more conservative, never
// incorrect.
func stepHint(p params.Params) int {
	step := int(math.Round(float64(p.WindowSize)*(1-p.PctOverlap)/100) * 100)
	if step < 1 {
		step = 1
	}
	return step
}

func openReference(ctx context.Context, path string) (*refseq.Reference, error) {
	fastaFile, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	faiFile, err := file.Open(ctx, path+".fai")
	if err != nil {
		return nil, err
	}
	defer faiFile.Close(ctx)
	return refseq.Open(fastaFile.Reader(ctx), faiFile.Reader(ctx))
}

func buildWindows(ref *refseq.Reference, p params.Params) ([]window.Window, error) {
	wp := window.Params{Padding: p.Padding, WindowSize: p.WindowSize, PctOverlap: p.PctOverlap}

	var raw []window.Region
	switch {
	case p.Region != "":
		r, err := window.ExpandRegionString(ref, p.Region)
		if err != nil {
			return nil, err
		}
		raw = []window.Region{r}
	case p.BEDFile != "":
		var err error
		raw, err = window.ReadBEDFromPath(p.BEDFile, ref)
		if err != nil {
			return nil, err
		}
	default:
		for _, name := range ref.Contigs() {
			length, err := ref.Len(name)
			if err != nil {
				return nil, err
			}
			raw = append(raw, window.Region{Contig: name, ContigIdx: ref.ContigIndex(name), Start0: 0, End0: int(length)})
		}
	}
	return window.Build(raw, ref, wp)
}
