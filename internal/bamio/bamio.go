// Package bamio provides indexed, region-scoped iteration over the tumor
// and normal BAM inputs (spec.md §6 "BAM/CRAM input"), grounded on the
// bam.Reader/bam.Index/bam.NewIterator pattern.
package bamio

import (
	"io"
	"sync"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/pkg/errors"

	"github.com/nextgenseq/somavar/internal/reads"
	"github.com/nextgenseq/somavar/internal/somaerr"
	"github.com/nextgenseq/somavar/internal/window"
)

// sampleReader holds one sample's open BAM stream, its .bai index, and a
// file.File handle that outlives the bam.Reader built on top of it. One
// sampleReader per sample serves every worker, through Provider's lock.
type sampleReader struct {
	f      file.File
	reader *bam.Reader
	index  *bam.Index
	header *sam.Header
}

// openSamplePath opens path plus path+".bai" in the teacher's
// cmd/broadside.go style (bam.NewReader + bam.ReadIndex), using
// grailbio/base/file so remote paths (s3://, etc.) work the same way the
// rest of the module reads files.
func openSamplePath(path string) (*sampleReader, error) {
	ctx := vcontext.Background()
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, somaerr.IO(errors.Wrapf(err, "bamio: opening %s", path))
	}
	r, err := bam.NewReader(f.Reader(ctx), 0)
	if err != nil {
		_ = f.Close(ctx)
		return nil, somaerr.IO(errors.Wrapf(err, "bamio: reading bam header %s", path))
	}

	idxFile, err := file.Open(ctx, path+".bai")
	if err != nil {
		_ = f.Close(ctx)
		return nil, somaerr.IO(errors.Wrapf(err, "bamio: opening bai index for %s", path))
	}
	defer idxFile.Close(ctx)
	idx, err := bam.ReadIndex(idxFile.Reader(ctx))
	if err != nil {
		_ = f.Close(ctx)
		return nil, somaerr.IO(errors.Wrapf(err, "bamio: reading bai index for %s", path))
	}

	return &sampleReader{f: f, reader: r, index: idx, header: r.Header()}, nil
}

func (s *sampleReader) close() error {
	ctx := vcontext.Background()
	return s.f.Close(ctx)
}

// fetch iterates every record overlapping region and converts passing ones
// to reads.Read via reads.FromAlignment (spec.md §3's trimming rule).
func (s *sampleReader) fetch(region window.Region, sample reads.Sample, minMappingQual, minBaseQual, minLength int) ([]reads.Read, error) {
	refs := s.header.Refs()
	if region.ContigIdx < 0 || region.ContigIdx >= len(refs) {
		return nil, errors.Errorf("bamio: contig index %d out of range", region.ContigIdx)
	}
	ref := refs[region.ContigIdx]
	chunks, err := s.index.Chunks(ref, region.Start0, region.End0)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "bamio: index chunks for %s", region)
	}
	it, err := bam.NewIterator(s.reader, chunks)
	if err != nil {
		return nil, errors.Wrap(err, "bamio: building iterator")
	}
	defer it.Close()

	var out []reads.Read
	for it.Next() {
		rec := it.Record()
		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		if int(rec.MapQ) < minMappingQual {
			continue
		}
		if rec.End() <= region.Start0 || rec.Pos >= region.End0 {
			continue
		}
		if r, ok := reads.FromAlignment(rec, sample, minBaseQual, minLength); ok {
			out = append(out, r)
		}
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "bamio: iterating records")
	}
	return out, nil
}

// Provider owns the tumor and normal BAM streams for the whole run and
// serves per-window read fetches. A single Provider is shared by all
// workers; workers do not get handles of their own, and FetchWindow holds
// a lock so that fetches run one at a time.
type Provider struct {
	mu            sync.Mutex
	tumor, normal *sampleReader
}

// Open opens both BAM inputs and, unless noContigCheck is set, verifies
// their contig tables agree (spec.md §6's `--no-contig-check` flag).
func Open(tumorPath, normalPath string, noContigCheck bool) (*Provider, error) {
	tumor, err := openSamplePath(tumorPath)
	if err != nil {
		return nil, err
	}
	normal, err := openSamplePath(normalPath)
	if err != nil {
		_ = tumor.close()
		return nil, err
	}
	if !noContigCheck {
		if mismatch := firstContigMismatch(tumor.header, normal.header); mismatch != "" {
			_ = tumor.close()
			_ = normal.close()
			return nil, somaerr.Configuration(errors.Errorf("bamio: tumor/normal contig tables disagree: %s", mismatch))
		}
	}
	return &Provider{tumor: tumor, normal: normal}, nil
}

func firstContigMismatch(a, b *sam.Header) string {
	ra, rb := a.Refs(), b.Refs()
	if len(ra) != len(rb) {
		return errors.Errorf("contig counts %d vs %d", len(ra), len(rb)).Error()
	}
	for i := range ra {
		if ra[i].Name() != rb[i].Name() {
			return errors.Errorf("contig %d: %q vs %q", i, ra[i].Name(), rb[i].Name()).Error()
		}
		if ra[i].Len() != rb[i].Len() {
			return errors.Errorf("contig %q length: %d vs %d", ra[i].Name(), ra[i].Len(), rb[i].Len()).Error()
		}
	}
	return ""
}

// FetchWindow returns every trimmed, quality-passing read overlapping
// region from both samples (spec.md §4.1/§4.2's window read extraction).
func (p *Provider) FetchWindow(region window.Region, minMappingQual, minBaseQual, minLength int) (tumorReads, normalReads []reads.Read, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tumorReads, err = p.tumor.fetch(region, reads.Tumor, minMappingQual, minBaseQual, minLength)
	if err != nil {
		return nil, nil, errors.Wrap(err, "bamio: fetching tumor reads")
	}
	normalReads, err = p.normal.fetch(region, reads.Normal, minMappingQual, minBaseQual, minLength)
	if err != nil {
		return nil, nil, errors.Wrap(err, "bamio: fetching normal reads")
	}
	return tumorReads, normalReads, nil
}

// Header returns the tumor sample's header, used as the canonical contig
// table for window generation when the caller has no separate FASTA
// contig source.
func (p *Provider) Header() *sam.Header { return p.tumor.header }

// Close closes both BAM streams.
func (p *Provider) Close() error {
	err1 := p.tumor.close()
	err2 := p.normal.close()
	if err1 != nil {
		return err1
	}
	return err2
}
