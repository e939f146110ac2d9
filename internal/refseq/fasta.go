// Package refseq provides random-access reads of an indexed FASTA reference,
// adapted from grailbio/bio's encoding/fasta package for the needs of a
// window-at-a-time caller: Reference.Fetch always returns an uppercased
// sequence with non-ACGT bases coerced to 'N', and contigs carry a stable
// index equal to FASTA header order (spec.md §6).
package refseq

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Fasta represents FASTA-formatted data: a set of named sequences,
// addressable with 0-based half-open coordinates.
type Fasta interface {
	// Get returns a substring of the given sequence name at coordinates
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)
	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)
	// SeqNames returns the names of all sequences, in FASTA header order.
	SeqNames() []string
}

// indexRegExp matches one line of a samtools-style .fai index:
// name, length, offset, linebases, linewidth.
var indexRegExp = regexp.MustCompile(`^(\S+)\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)`)

// GenerateIndex writes a samtools-compatible .fai index for the FASTA data
// read from in.
func GenerateIndex(out io.Writer, in io.Reader) error {
	var (
		seqName     string
		seqStartOff int64
		totalBases  int
		lineBases   int
		lineWidth   int
		cumByte     int64
		haveSeq     bool
	)
	flush := func() error {
		if !haveSeq {
			return nil
		}
		_, err := fmt.Fprintf(out, "%s\t%d\t%d\t%d\t%d\n", seqName, totalBases, seqStartOff, lineBases, lineWidth)
		return err
	}
	r := bufio.NewReader(in)
	for {
		fullLine, rerr := r.ReadBytes('\n')
		if len(fullLine) == 0 && rerr != nil {
			break
		}
		cumByte += int64(len(fullLine))
		line := strings.TrimRight(string(fullLine), "\r\n")
		if line == "" {
			if rerr != nil {
				break
			}
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			seqName = strings.SplitN(line[1:], " ", 2)[0]
			seqStartOff = cumByte
			lineWidth = 0
			lineBases = 0
			totalBases = 0
			haveSeq = true
		} else {
			if lineWidth == 0 {
				lineWidth = len(fullLine)
				lineBases = len(line)
			}
			totalBases += len(line)
		}
		if rerr != nil {
			break
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if cumByte == 0 {
		return errors.New("refseq: empty FASTA file")
	}
	return nil
}
