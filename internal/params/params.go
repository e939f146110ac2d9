// Package params holds the immutable, validated parameter bundle shared by
// every worker goroutine, matching the "Shared immutable parameter bundle"
// design note in spec.md §9: CLI flags are parsed once into package-level
// vars (as in cmd/bio-pileup/main.go), copied into a Params value, validated,
// and handed to workers by value thereafter — no worker ever sees a
// *flag.FlagSet.
package params

import (
	"github.com/pkg/errors"
)

// Params is the complete, validated configuration for one pipeline run. It
// is constructed once by Validate and never mutated afterward; workers
// receive it by value (it contains no pointers to mutable shared state).
type Params struct {
	// Inputs.
	TumorBAM      string
	NormalBAM     string
	ReferenceFA   string
	OutPrefix     string
	OutVCF        string
	Region        string
	BEDFile       string
	GraphDir      string

	// Window geometry.
	Padding        int
	WindowSize     int
	PctOverlap     float64

	// Assembly.
	MinKmerLength       int
	MaxKmerLength       int
	MaxWindowCov        int
	GraphTraversalLimit int

	// Read filtering.
	MinBaseQual    int
	MinMappingQual int

	// Graph construction thresholds.
	MinAnchorCov int
	MinNodeCov   int
	MinCovRatio  float64
	MaxIndelLen  int

	// Genotyping / scoring thresholds.
	MaxRptMismatch int
	MinFisher      float64
	MinSTRFisher   float64
	MinTmrVAF      float64
	MaxNmlVAF      float64
	MinTmrCov      int
	MinNmlCov      int
	MaxTmrCov      int
	MaxNmlCov      int
	MinStrandCnt   int
	MinTmrAltCnt   int
	MaxNmlAltCnt   int

	// Modes.
	TenXMode       bool
	ActiveRegionOff bool
	NoContigCheck  bool

	// Parallelism.
	NumThreads int
}

// Default returns a Params populated with the defaults documented in
// spec.md §6, before CLI overrides and Validate are applied.
func Default() Params {
	return Params{
		Padding:             100,
		WindowSize:          600,
		PctOverlap:          0.1,
		MinKmerLength:       11,
		MaxKmerLength:       81,
		MaxWindowCov:        10000,
		GraphTraversalLimit: 100000,
		MinBaseQual:         10,
		MinMappingQual:      10,
		MinAnchorCov:        2,
		MinNodeCov:          2,
		MinCovRatio:         0.01,
		MaxIndelLen:         500,
		MaxRptMismatch:      3,
		MinFisher:           0.05,
		MinSTRFisher:        0.05,
		MinTmrVAF:           0.01,
		MaxNmlVAF:           0.02,
		MinTmrCov:           3,
		MinNmlCov:           3,
		MaxTmrCov:           100000,
		MaxNmlCov:           100000,
		MinStrandCnt:        0,
		MinTmrAltCnt:        3,
		MaxNmlAltCnt:        1000000,
		NumThreads:          0,
	}
}

// Validate checks p for missing/incompatible inputs and conflicting numeric
// ranges, returning a configuration error (spec.md §7) describing the first
// problem found. It does not touch the filesystem; contig-table agreement
// is checked separately once the BAM/reference headers are available,
// because that check needs their parsed contents.
func (p *Params) Validate() error {
	switch {
	case p.TumorBAM == "":
		return errors.New("params: --tumor is required")
	case p.NormalBAM == "":
		return errors.New("params: --normal is required")
	case p.ReferenceFA == "":
		return errors.New("params: --reference is required")
	case p.OutPrefix == "" && p.OutVCF == "":
		return errors.New("params: one of --out-prefix or --out-vcf is required")
	case p.Region != "" && p.BEDFile != "":
		return errors.New("params: --region and --bed-file are mutually exclusive")
	case p.MinKmerLength < 3 || p.MinKmerLength%2 == 0:
		return errors.New("params: --min-kmer-length must be odd and >= 3")
	case p.MaxKmerLength < p.MinKmerLength:
		return errors.New("params: --max-kmer-length must be >= --min-kmer-length")
	case p.MaxKmerLength%2 == 0:
		return errors.New("params: --max-kmer-length must be odd")
	case p.WindowSize <= 0:
		return errors.New("params: --window-size must be positive")
	case p.Padding < 0:
		return errors.New("params: --padding must be non-negative")
	case p.PctOverlap < 0.05 || p.PctOverlap > 0.95:
		return errors.New("params: --pct-overlap must be in [0.05, 0.95]")
	case p.MinTmrVAF < 0 || p.MinTmrVAF > 1:
		return errors.New("params: --min-tmr-vaf must be in [0, 1]")
	case p.MaxNmlVAF < 0 || p.MaxNmlVAF > 1:
		return errors.New("params: --max-nml-vaf must be in [0, 1]")
	case p.MinTmrCov > p.MaxTmrCov:
		return errors.New("params: --min-tmr-cov must be <= --max-tmr-cov")
	case p.MinNmlCov > p.MaxNmlCov:
		return errors.New("params: --min-nml-cov must be <= --max-nml-cov")
	case p.NumThreads < 0:
		return errors.New("params: --num-threads must be non-negative")
	}
	return nil
}

// OutputVCFPath resolves the final VCF output path, honoring --out-vcf when
// set and falling back to --out-prefix + ".vcf.gz" otherwise.
func (p *Params) OutputVCFPath() string {
	if p.OutVCF != "" {
		return p.OutVCF
	}
	return p.OutPrefix + ".vcf.gz"
}
