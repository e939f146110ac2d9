// Package window expands region specs and BED input into the sorted,
// padded, overlap-stepped fixed-length windows of spec.md §4.1.
package window

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
	"github.com/nextgenseq/somavar/interval"
	"github.com/pkg/errors"

	"github.com/nextgenseq/somavar/internal/refseq"
)

// Region is a half-open genomic interval, 0-based, per spec.md §3.
type Region struct {
	Contig    string
	ContigIdx int
	Start0    int
	End0      int
}

// Window is a Region plus the monotonic index assigned in sort order
// (spec.md §3 "Window"). Index is stable across a run.
type Window struct {
	Region
	Index int
}

// Params bounds window expansion: padding, window length, and percent
// overlap (spec.md §4.1's `(P, W, O)`). Overlap is stored as a fraction
// (0.1 = 10%), the same unit as internal/params.Params.PctOverlap.
type Params struct {
	Padding    int
	WindowSize int
	PctOverlap float64
}

// ExpandRegionString resolves a `"chr:start-end"`-style region string
// against ref's contig table, using interval.ParseRegionString for the
// 1-based-closed-to-0-based-half-open conversion (spec.md §4.1 step 1).
func ExpandRegionString(ref *refseq.Reference, region string) (Region, error) {
	entry, err := interval.ParseRegionString(region)
	if err != nil {
		return Region{}, errors.Wrap(err, "window: parsing region string")
	}
	idx := ref.ContigIndex(entry.ChrName)
	if idx < 0 {
		return Region{}, errors.Errorf("window: region references unknown contig %q", entry.ChrName)
	}
	length, err := ref.Len(entry.ChrName)
	if err != nil {
		return Region{}, errors.Wrap(err, "window: resolving contig length")
	}
	end0 := int(entry.End)
	if uint64(end0) > length || entry.End == posTypeMaxSentinel {
		end0 = int(length)
	}
	return Region{Contig: entry.ChrName, ContigIdx: idx, Start0: int(entry.Start0), End0: end0}, nil
}

// posTypeMaxSentinel mirrors interval.ParseRegionString's "no positional
// restriction" sentinel (posTypeMax-1) for a bare contig name region.
const posTypeMaxSentinel = (1 << 31) - 2

// ReadBED reads a BED file's first three columns (chrom, 0-based start,
// half-open end) into a flat, unmerged []Region in file order. This is a
// deliberately standalone scanner rather than interval.NewBEDUnion: the
// Union type merges overlapping intervals and discards original entry
// boundaries, which spec.md §4.1's per-region padding and windowing needs
// to preserve.
func ReadBED(r io.Reader, ref *refseq.Reference) ([]Region, error) {
	var regions []Region
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, errors.Errorf("window: bed line %d: need at least 3 columns", lineNo)
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "window: bed line %d: start column", lineNo)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, errors.Wrapf(err, "window: bed line %d: end column", lineNo)
		}
		idx := ref.ContigIndex(fields[0])
		if idx < 0 {
			return nil, errors.Errorf("window: bed line %d: unknown contig %q", lineNo, fields[0])
		}
		regions = append(regions, Region{Contig: fields[0], ContigIdx: idx, Start0: start, End0: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "window: scanning bed file")
	}
	return regions, nil
}

// ReadBEDFromPath opens path (transparently gzip-decompressed, per the
// teacher's fileio.DetermineType convention) and reads its regions.
func ReadBEDFromPath(path string, ref *refseq.Reference) (regions []Region, err error) {
	ctx := vcontext.Background()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "window: opening bed file %s", path)
	}
	defer file.CloseAndReport(ctx, f, &err)

	reader := io.Reader(f.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, gzErr := gzip.NewReader(reader)
		if gzErr != nil {
			return nil, errors.Wrapf(gzErr, "window: opening gzip bed file %s", path)
		}
		defer gz.Close()
		reader = gz
	}
	regions, err = ReadBED(reader, ref)
	return
}

// Build expands raw into sorted, padded, overlap-stepped windows (spec.md
// §4.1 steps 2-4).
func Build(raw []Region, ref *refseq.Reference, p Params) ([]Window, error) {
	var out []Region
	for _, r := range raw {
		length, err := ref.Len(r.Contig)
		if err != nil {
			return nil, errors.Wrapf(err, "window: resolving length for %s", r.Contig)
		}
		start0 := r.Start0 - p.Padding
		if start0 < 0 {
			start0 = 0
		}
		end0 := r.End0 + p.Padding
		if end0 > int(length) {
			end0 = int(length)
		}
		padded := Region{Contig: r.Contig, ContigIdx: r.ContigIdx, Start0: start0, End0: end0}

		if end0-start0 <= p.WindowSize {
			out = append(out, padded)
			continue
		}
		step := stepSize(p.WindowSize, p.PctOverlap)
		for s := start0; s < end0; s += step {
			e := s + p.WindowSize
			if e > end0 {
				e = end0
			}
			out = append(out, Region{Contig: r.Contig, ContigIdx: r.ContigIdx, Start0: s, End0: e})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ContigIdx != b.ContigIdx {
			return a.ContigIdx < b.ContigIdx
		}
		if a.Start0 != b.Start0 {
			return a.Start0 < b.Start0
		}
		return a.End0 < b.End0
	})

	windows := make([]Window, len(out))
	for i, r := range out {
		windows[i] = Window{Region: r, Index: i}
	}
	return windows, nil
}

// stepSize implements spec.md §4.1's
// `step = round(W·(100−O)/100 / 100) · 100`, where O is a percentage
// (converted here from the params' fraction).
func stepSize(w int, overlapFraction float64) int {
	overlapPct := overlapFraction * 100
	nonOverlap := float64(w) * (100 - overlapPct) / 100
	step := math.Round(nonOverlap/100) * 100
	if step < 1 {
		step = 1
	}
	return int(step)
}

// String renders a Region the way a 1-based region string would read.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start0+1, r.End0)
}
