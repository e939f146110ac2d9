package refseq

import (
	"io"
	"sync"

	"github.com/nextgenseq/somavar/biosimd"
	"github.com/pkg/errors"
)

// Reference wraps an indexed Fasta with a stable per-contig index (equal to
// FASTA header order) and the uppercase/non-ACGT-to-N cleaning every fetch
// must apply before a window is assembled.
type Reference struct {
	fa        Fasta
	once      sync.Once
	indexByID map[string]int
}

// Open builds a Reference from FASTA data and its .fai index contents.
func Open(fasta io.ReadSeeker, index io.Reader) (*Reference, error) {
	fa, err := NewIndexed(fasta, index)
	if err != nil {
		return nil, errors.Wrap(err, "refseq: opening indexed reference")
	}
	r := &Reference{fa: fa}
	r.buildIndex()
	return r, nil
}

func (r *Reference) buildIndex() {
	r.indexByID = make(map[string]int, len(r.fa.SeqNames()))
	for i, name := range r.fa.SeqNames() {
		r.indexByID[name] = i
	}
}

// Contigs returns contig names in stable index order.
func (r *Reference) Contigs() []string { return r.fa.SeqNames() }

// ContigIndex returns the stable 0-based index of a contig, or -1 if absent.
func (r *Reference) ContigIndex(name string) int {
	if i, ok := r.indexByID[name]; ok {
		return i
	}
	return -1
}

// Len returns the length of a contig.
func (r *Reference) Len(name string) (uint64, error) {
	return r.fa.Len(name)
}

// Fetch returns the uppercased, non-ACGT-coerced-to-N sequence for
// [start, end) on the given contig. A request whose end exceeds the contig
// length is reported as a truncated-reference condition via the returned
// error, distinct from an out-of-range error on an unknown contig.
func (r *Reference) Fetch(contig string, start, end uint64) (string, error) {
	length, err := r.fa.Len(contig)
	if err != nil {
		return "", errors.Wrapf(err, "refseq: fetch %s:%d-%d", contig, start, end)
	}
	truncated := end > length
	if truncated {
		end = length
	}
	if end <= start {
		return "", errors.Errorf("refseq: empty or invalid fetch range %s:%d-%d (contig length %d)", contig, start, end, length)
	}
	seq, err := r.fa.Get(contig, start, end)
	if err != nil {
		return "", errors.Wrapf(err, "refseq: fetch %s:%d-%d", contig, start, end)
	}
	buf := []byte(seq)
	biosimd.CleanASCIISeqInplace(buf)
	if truncated {
		return string(buf), errTruncated{contig: contig, start: start, end: end, contigLen: length}
	}
	return string(buf), nil
}

// errTruncated reports that a fetch was clipped to the contig's actual
// length; callers that need to distinguish this from a hard I/O error use
// errors.As.
type errTruncated struct {
	contig    string
	start, end uint64
	contigLen uint64
}

func (e errTruncated) Error() string {
	return errors.Errorf("refseq: window [%d,%d) on %s truncated to contig length %d",
		e.start, e.end, e.contig, e.contigLen).Error()
}

// IsTruncated reports whether err indicates a fetch was clipped to the
// contig boundary rather than failing outright.
func IsTruncated(err error) bool {
	_, ok := err.(errTruncated)
	return ok
}
