// Package scheduler implements the window queue / result queue / ordered
// flush driver of spec.md §5: a bounded single-producer window queue feeds
// worker goroutines (grounded on the teacher's traverse.Each fan-out
// idiom, generalised from static shard partitioning to a dynamic work
// queue so a slow window doesn't stall idle workers), and a
// single-consumer main loop advances an idx_to_flush cursor as results
// arrive back.
package scheduler

import (
	"math"
	"time"

	"github.com/grailbio/base/log"

	"github.com/nextgenseq/somavar/internal/variant"
	"github.com/nextgenseq/somavar/internal/vcfio"
	"github.com/nextgenseq/somavar/internal/window"
)

// Process is one worker's full window pipeline (window -> reads -> graph
// -> paths -> transcripts -> variants), implemented by
// internal/assembler.MicroAssembler.Process.
type Process func(w window.Window) ([]variant.Call, error)

// result is the (window_index, elapsed_time) token of spec.md §5's result
// queue, carrying an error if the window panicked or failed and was
// skipped.
type result struct {
	index   int
	elapsed time.Duration
	err     error
}

// ComputeBuffer returns spec.md §5's
// `buffer = ceil(4 * max(max_indel_length, window_length) / step)`, the
// number of windows ahead of idx_to_flush that must report completion
// before idx_to_flush can be flushed.
func ComputeBuffer(maxIndelLength, windowLength, step int) int {
	m := maxIndelLength
	if windowLength > m {
		m = windowLength
	}
	if step <= 0 {
		step = 1
	}
	return int(math.Ceil(4 * float64(m) / float64(step)))
}

// Scheduler drives numWorkers goroutines over windows, calling process for
// each, merging its variant calls into store via TryAdd (falling back to
// a locally buffered retry, spec.md §5 "Backpressure"), and flushing store
// to writer in window-index order once the buffer lag condition clears.
type Scheduler struct {
	windows    []window.Window
	numWorkers int
	process    Process
	store      *variant.Store
	writer     *vcfio.Writer
	buffer     int
}

// New builds a Scheduler. buffer is typically ComputeBuffer's result.
func New(windows []window.Window, numWorkers int, process Process, store *variant.Store, writer *vcfio.Writer, buffer int) *Scheduler {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Scheduler{windows: windows, numWorkers: numWorkers, process: process, store: store, writer: writer, buffer: buffer}
}

// Run processes every window to completion, flushing store to writer in
// order as the buffer lag condition allows, and drains the tail with
// FlushAll once every worker has finished. It returns the first flush
// error encountered (workers themselves never fail Run: a panicking or
// erroring window is recorded and skipped, per spec.md §5).
func (s *Scheduler) Run() error {
	windowCh := make(chan window.Window, len(s.windows))
	for _, w := range s.windows {
		windowCh <- w
	}
	close(windowCh)

	resultCh := make(chan result, s.numWorkers*2)
	pending := make(chan []variant.Call, s.numWorkers*2)

	done := make(chan struct{})
	for i := 0; i < s.numWorkers; i++ {
		go s.work(windowCh, resultCh, pending, done)
	}
	go func() {
		for i := 0; i < s.numWorkers; i++ {
			<-done
		}
		close(resultCh)
		close(pending)
	}()

	reported := make([]bool, len(s.windows))
	idxToFlush := 0
	var flushErr error
	var backlog [][]variant.Call

	drainBacklog := func() {
		for len(backlog) > 0 {
			if !s.store.TryAdd(backlog[0]) {
				return
			}
			backlog = backlog[1:]
		}
	}

	resultsOpen, pendingOpen := true, true
	for resultsOpen || pendingOpen {
		select {
		case r, ok := <-resultCh:
			if !ok {
				resultsOpen = false
				continue
			}
			reported[r.index] = true
			if r.err != nil {
				log.Error.Printf("scheduler: window %d skipped: %v", r.index, r.err)
			}
			for idxToFlush < len(s.windows) && s.bufferCleared(reported, idxToFlush) {
				w := s.windows[idxToFlush]
				if err := s.store.FlushWindow(w.ContigIdx, w.End0, s.writer); err != nil && flushErr == nil {
					flushErr = err
				}
				idxToFlush++
			}
		case batch, ok := <-pending:
			if !ok {
				pendingOpen = false
				continue
			}
			if !s.store.TryAdd(batch) {
				backlog = append(backlog, batch)
			}
			drainBacklog()
		}
	}
	drainBacklog()
	for _, batch := range backlog {
		s.store.ForceAdd(batch)
	}
	if err := s.store.FlushAll(s.writer); err != nil && flushErr == nil {
		flushErr = err
	}
	return flushErr
}

// bufferCleared reports whether every window in
// [idxToFlush, idxToFlush+buffer] has reported completion, per spec.md
// §5's ordering guarantee.
func (s *Scheduler) bufferCleared(reported []bool, idxToFlush int) bool {
	last := idxToFlush + s.buffer
	if last >= len(reported) {
		last = len(reported) - 1
	}
	for i := idxToFlush; i <= last; i++ {
		if !reported[i] {
			return false
		}
	}
	return true
}

func (s *Scheduler) work(windowCh <-chan window.Window, resultCh chan<- result, pending chan<- []variant.Call, done chan<- struct{}) {
	defer close(done)
	for w := range windowCh {
		start := time.Now()
		calls, err := s.processWindow(w)
		if err == nil && len(calls) > 0 {
			pending <- calls
		}
		resultCh <- result{index: w.Index, elapsed: time.Since(start), err: err}
	}
}

// processWindow calls s.process, recovering from a panic so one bad
// window never stops the run (spec.md §5 "Cancellation and timeouts").
func (s *Scheduler) processWindow(w window.Window) (calls []variant.Call, err error) {
	defer func() {
		if r := recover(); r != nil {
			calls, err = nil, errPanic{window: w.Index, recovered: r}
		}
	}()
	return s.process(w)
}

type errPanic struct {
	window    int
	recovered interface{}
}

func (e errPanic) Error() string {
	return "scheduler: window panicked"
}
