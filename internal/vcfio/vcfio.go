// Package vcfio writes the BGZF-compressed VCF output with a tabix-style
// index rebuilt at close (spec.md §4.7/§6 "VCF output").
package vcfio

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/nextgenseq/somavar/encoding/bgzf"
	"github.com/nextgenseq/somavar/internal/variant"
)

// indexMagic tags the sidecar index file, modeled on encoding/bam/gindex.go's
// .gbai magic-byte header.
var indexMagic = []byte{'S', 'V', 'C', 'I', 0x01, 0xf1, 0x78, 0x5c}

// indexEntry is one (contig,pos) -> BGZF virtual-offset mapping, sorted
// ascending by (ContigIdx,Pos1), mirroring GIndexEntry's (RefID,Pos,VOffset).
type indexEntry struct {
	ContigIdx int32
	Pos1      int32
	VOffset   uint64
}

// Writer streams VCF data lines through a BGZF writer and accumulates the
// voffset-keyed index written at Close.
type Writer struct {
	f       file.File
	bgzfW   *bgzf.Writer
	entries []indexEntry
	indexPath string
}

// Create opens path, writes the VCF header (contigs in FASTA order, sample
// columns NORMAL then TUMOR per spec.md §4.7), and returns a ready Writer.
func Create(path string, contigs []string, contigLens []uint64, tenXMode bool) (*Writer, error) {
	ctx := vcontext.Background()
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "vcfio: creating %s", path)
	}
	bw, err := bgzf.NewWriter(f.Writer(ctx), flate.DefaultCompression)
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.Wrap(err, "vcfio: creating bgzf writer")
	}
	w := &Writer{f: f, bgzfW: bw, indexPath: path + ".svci"}
	if err := w.writeHeader(contigs, contigLens, tenXMode); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader(contigs []string, contigLens []uint64, tenXMode bool) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "##fileformat=VCFv4.2")
	fmt.Fprintln(&buf, `##FILTER=<ID=PASS,Description="All filters passed">`)
	for _, name := range []string{
		"LowFisherSTR", "LowFisherScore", "LowCovNormal", "HighCovNormal",
		"LowCovTumor", "HighCovTumor", "LowVafTumor", "HighVafNormal",
		"LowAltCntTumor", "HighAltCntNormal", "StrandBias", "MultiHP",
	} {
		fmt.Fprintf(&buf, "##FILTER=<ID=%s,Description=%q>\n", name, name)
	}
	fmt.Fprintln(&buf, `##INFO=<ID=FETS,Number=1,Type=Float,Description="Phred-scaled Fisher exact somatic score">`)
	fmt.Fprintln(&buf, `##INFO=<ID=TYPE,Number=1,Type=String,Description="Variant transcript kind">`)
	fmt.Fprintln(&buf, `##INFO=<ID=LEN,Number=1,Type=Integer,Description="Allele length">`)
	fmt.Fprintln(&buf, `##INFO=<ID=KMERSIZE,Number=1,Type=Integer,Description="k-mer size used for assembly">`)
	fmt.Fprintln(&buf, `##INFO=<ID=SB,Number=1,Type=Float,Description="Phred-scaled strand-bias score">`)
	fmt.Fprintln(&buf, `##INFO=<ID=MS,Number=1,Type=String,Description="Microsatellite length:unit">`)
	fmt.Fprintln(&buf, `##FORMAT=<ID=GT,Number=1,Type=String,Description="Genotype">`)
	fmt.Fprintln(&buf, `##FORMAT=<ID=AD,Number=2,Type=Integer,Description="Allelic depths (ref,alt)">`)
	fmt.Fprintln(&buf, `##FORMAT=<ID=SR,Number=1,Type=Integer,Description="Forward-strand read count">`)
	fmt.Fprintln(&buf, `##FORMAT=<ID=SA,Number=1,Type=Integer,Description="Reverse-strand read count">`)
	fmt.Fprintln(&buf, `##FORMAT=<ID=DP,Number=1,Type=Integer,Description="Depth">`)
	if tenXMode {
		fmt.Fprintln(&buf, `##FORMAT=<ID=HPR,Number=1,Type=Integer,Description="Haplotype-tagged reference count">`)
		fmt.Fprintln(&buf, `##FORMAT=<ID=HPA,Number=1,Type=Integer,Description="Haplotype-tagged alt count">`)
	}
	for i, name := range contigs {
		fmt.Fprintf(&buf, "##contig=<ID=%s,length=%d>\n", name, contigLens[i])
	}
	fmt.Fprintln(&buf, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNORMAL\tTUMOR")
	_, err := w.bgzfW.Write(buf.Bytes())
	return err
}

// Write implements io.Writer by forwarding raw bytes to the BGZF stream.
// It exists so *Writer satisfies variant.Store's FlushWindow/FlushAll
// io.Writer parameter; those callers detect the richer WriteCall method
// and use it instead, so Write's index-less path is never exercised in
// the normal flow.
func (w *Writer) Write(p []byte) (int, error) {
	return w.bgzfW.Write(p)
}

// WriteCall emits one scored variant call's VCF line, recording its BGZF
// virtual offset in the index (spec.md §4.7's "tabix-style index rebuilt
// at close"). Calls with State NONE are silently skipped (already dropped
// by the caller in the normal flow, but guarded here too).
func (w *Writer) WriteCall(c variant.Call) error {
	line, ok := c.VCFLine()
	if !ok {
		return nil
	}
	voffset := w.bgzfW.VOffset()
	if _, err := w.bgzfW.Write([]byte(line + "\n")); err != nil {
		return errors.Wrap(err, "vcfio: writing record")
	}
	w.entries = append(w.entries, indexEntry{
		ContigIdx: int32(c.ContigIdx),
		Pos1:      int32(c.Pos1),
		VOffset:   voffset,
	})
	return nil
}

// Close finalises the BGZF stream and writes the sidecar index.
func (w *Writer) Close() (err error) {
	ctx := vcontext.Background()
	defer file.CloseAndReport(ctx, w.f, &err)
	if err = w.bgzfW.Close(); err != nil {
		return errors.Wrap(err, "vcfio: closing bgzf writer")
	}
	return w.writeIndex()
}

func (w *Writer) writeIndex() error {
	sort.SliceStable(w.entries, func(i, j int) bool {
		a, b := w.entries[i], w.entries[j]
		if a.ContigIdx != b.ContigIdx {
			return a.ContigIdx < b.ContigIdx
		}
		return a.Pos1 < b.Pos1
	})

	ctx := vcontext.Background()
	idxFile, err := file.Create(ctx, w.indexPath)
	if err != nil {
		return errors.Wrapf(err, "vcfio: creating index %s", w.indexPath)
	}
	defer file.CloseAndReport(ctx, idxFile, &err)

	gz := gzip.NewWriter(idxFile.Writer(ctx))
	if _, err = gz.Write(indexMagic); err != nil {
		return errors.Wrap(err, "vcfio: writing index magic")
	}
	buf := make([]byte, 16)
	for _, e := range w.entries {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(e.ContigIdx))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(e.Pos1))
		binary.LittleEndian.PutUint64(buf[8:16], e.VOffset)
		if _, err = gz.Write(buf); err != nil {
			return errors.Wrap(err, "vcfio: writing index entry")
		}
	}
	return gz.Close()
}
