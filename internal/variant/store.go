package variant

import (
	"io"
	"runtime"
	"sync/atomic"

	"github.com/biogo/store/llrb"
	"github.com/pkg/errors"
)

// storeKey is the llrb.Comparable ordering key for one stored variant,
// sorted by (contig_index, pos, ref_allele, alt_allele) per spec.md §4.7's
// flush sort key, grounded on the (refID,start) key type in
// encoding/bampair's shard index.
type storeKey struct {
	contigIdx int
	pos1      int
	ref       string
	alt       string
	entry     *Call
}

// Compare implements llrb.Comparable.
func (k storeKey) Compare(c2 llrb.Comparable) int {
	o := c2.(storeKey)
	if k.contigIdx != o.contigIdx {
		return k.contigIdx - o.contigIdx
	}
	if k.pos1 != o.pos1 {
		return k.pos1 - o.pos1
	}
	if k.ref != o.ref {
		if k.ref < o.ref {
			return -1
		}
		return 1
	}
	if k.alt != o.alt {
		if k.alt < o.alt {
			return -1
		}
		return 1
	}
	return 0
}

// Store is the single process-wide deduplicating variant index of spec.md
// §4.7: an llrb.Tree ordered by (contig_index,pos,ref,alt) behind a single
// spin-lock, addressable for dedup by the 64-bit identity hash.
type Store struct {
	locked uint32
	tree   llrb.Tree
	byID   map[uint64]storeKey
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[uint64]storeKey)}
}

func (s *Store) tryLock() bool {
	return atomic.CompareAndSwapUint32(&s.locked, 0, 1)
}

func (s *Store) unlock() {
	atomic.StoreUint32(&s.locked, 0)
}

func (s *Store) spinLock() {
	for !s.tryLock() {
		// a tight CompareAndSwap retry with a Gosched back-off, per
		// spec.md §5's "spin-lock with exponential back-off acceptable".
		runtime.Gosched()
	}
}

// TryAdd attempts a non-blocking merge of batch into the store. It returns
// false immediately if the lock is held by another worker, in which case
// the caller is expected to buffer batch locally and retry (spec.md §5
// "Backpressure").
func (s *Store) TryAdd(batch []Call) bool {
	if !s.tryLock() {
		return false
	}
	defer s.unlock()
	s.mergeLocked(batch)
	return true
}

// ForceAdd blocks until the lock is acquired, then merges batch.
func (s *Store) ForceAdd(batch []Call) {
	s.spinLock()
	defer s.unlock()
	s.mergeLocked(batch)
}

// mergeLocked applies spec.md §4.7's merge rule: an incoming variant
// sharing an id with a stored one replaces it only if its total coverage
// is higher; otherwise the incoming copy is discarded.
func (s *Store) mergeLocked(batch []Call) {
	for i := range batch {
		c := batch[i]
		if c.State == StateNone {
			continue
		}
		id := c.Variant.ID()
		if existing, ok := s.byID[id]; ok {
			if c.TotalCoverage() <= existing.entry.TotalCoverage() {
				continue
			}
			s.tree.Delete(existing)
		}
		k := storeKey{contigIdx: c.ContigIdx, pos1: c.Pos1, ref: c.RefAllele, alt: c.AltAllele, entry: &batch[i]}
		s.tree.Insert(k)
		s.byID[id] = k
	}
}

// FlushWindow removes and emits every variant whose (contig_index,pos) is
// <= (contigIdx,lastPos) in reference order, writing one VCF line per
// variant via w.
func (s *Store) FlushWindow(contigIdx, lastPos int, w io.Writer) error {
	s.spinLock()
	defer s.unlock()
	threshold := storeKey{contigIdx: contigIdx, pos1: lastPos, ref: "\xff", alt: "\xff"}
	var toDelete []storeKey
	// Do visits in Compare order; once a key exceeds threshold every later
	// key does too, but we don't rely on Do's return value stopping
	// traversal early (the llrb.Tree API pack examples never exercise that
	// path), so this is a full O(n) scan rather than an early break.
	s.tree.Do(func(c llrb.Comparable) bool {
		k := c.(storeKey)
		if k.Compare(threshold) > 0 {
			return false
		}
		toDelete = append(toDelete, k)
		return false
	})
	for _, k := range toDelete {
		if err := writeCall(w, *k.entry); err != nil {
			return errors.Wrap(err, "variant: flush_window")
		}
		s.tree.Delete(k)
		delete(s.byID, k.entry.Variant.ID())
	}
	return nil
}

// FlushAll emits every remaining variant and empties the store.
func (s *Store) FlushAll(w io.Writer) error {
	s.spinLock()
	defer s.unlock()
	var all []storeKey
	s.tree.Do(func(c llrb.Comparable) bool {
		all = append(all, c.(storeKey))
		return false
	})
	for _, k := range all {
		if err := writeCall(w, *k.entry); err != nil {
			return errors.Wrap(err, "variant: flush_all")
		}
		s.tree.Delete(k)
		delete(s.byID, k.entry.Variant.ID())
	}
	return nil
}

// callWriter is implemented by vcfio.Writer. writeCall prefers it so a
// flushed variant's BGZF virtual offset is recorded in the tabix-style
// index; plain io.Writer (e.g. a test's bytes.Buffer) falls back to raw
// line writing.
type callWriter interface {
	WriteCall(Call) error
}

func writeCall(w io.Writer, c Call) error {
	if cw, ok := w.(callWriter); ok {
		return cw.WriteCall(c)
	}
	line, ok := c.VCFLine()
	if !ok {
		return nil
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}
