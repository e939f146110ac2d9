// Package somaerr defines the error-kind taxonomy used across the caller,
// mirroring the distinct propagation policies described in spec.md §7:
// configuration and I/O errors are fatal at startup or abort the run;
// truncated-reference and window-local failures are recorded and the
// window is skipped; invariant violations are programming errors and
// abort the process via log.Panicf at the call site, not through this
// package.
package somaerr

import "fmt"

// Kind classifies an error by its propagation policy.
type Kind int

const (
	// KindConfiguration covers missing/incompatible inputs, unknown contigs,
	// contig-table mismatches, and conflicting numeric ranges. Fatal at
	// startup.
	KindConfiguration Kind = iota
	// KindIO covers FASTA fetch, BAM iteration, and VCF write failures.
	// Fatal.
	KindIO
	// KindTruncatedReference covers a fetched window shorter than the
	// requested bounds. The window is skipped, no VCF record is emitted.
	KindTruncatedReference
	// KindWindowLocal covers exceptions during graph build, path
	// enumeration, alignment, or genotyping for a single window. Logged
	// with the window id, the window is skipped, processing continues.
	KindWindowLocal
	// KindNoKChosen signals every k in the configured range was
	// repeat-heavy on the reference window. The window is skipped.
	KindNoKChosen
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindIO:
		return "io"
	case KindTruncatedReference:
		return "truncated-reference"
	case KindWindowLocal:
		return "window-local"
	case KindNoKChosen:
		return "no-k-chosen"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind and, for window-scoped
// failures, the window index and region string for logging.
type Error struct {
	Kind       Kind
	WindowIdx  int
	Region     string
	HasWindow  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.HasWindow {
		return fmt.Sprintf("%s: window %d (%s): %v", e.Kind, e.WindowIdx, e.Region, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Configuration wraps cause as a configuration error.
func Configuration(cause error) error {
	return &Error{Kind: KindConfiguration, Cause: cause}
}

// IO wraps cause as an I/O error.
func IO(cause error) error {
	return &Error{Kind: KindIO, Cause: cause}
}

// TruncatedReference wraps cause as a truncated-reference condition for the
// given window.
func TruncatedReference(windowIdx int, region string, cause error) error {
	return &Error{Kind: KindTruncatedReference, WindowIdx: windowIdx, Region: region, HasWindow: true, Cause: cause}
}

// WindowLocal wraps cause as a recoverable, window-scoped failure.
func WindowLocal(windowIdx int, region string, cause error) error {
	return &Error{Kind: KindWindowLocal, WindowIdx: windowIdx, Region: region, HasWindow: true, Cause: cause}
}

// NoKChosen reports that no k in the configured range yielded a usable
// graph for the given window.
func NoKChosen(windowIdx int, region string) error {
	return &Error{Kind: KindNoKChosen, WindowIdx: windowIdx, Region: region, HasWindow: true,
		Cause: fmt.Errorf("all k in range are repeat-heavy on this window")}
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if se, ok := err.(*Error); ok {
			return se.Kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}

// IsSkippable reports whether err's Kind means "skip this window and
// continue" rather than "abort the run".
func IsSkippable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindTruncatedReference, KindWindowLocal, KindNoKChosen:
		return true
	default:
		return false
	}
}
