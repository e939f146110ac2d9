package genostats

// OnlineStats accumulates mean and variance in one pass with Welford's
// algorithm, using only the standard library (spec.md §9 "Online
// statistics"). No other package of the module uses it: the
// max_window_cov guard and the coverage-ratio pruning threshold compute
// their figures directly.
type OnlineStats struct {
	n    int
	mean float64
	m2   float64
}

// Add folds x into the running statistics.
func (s *OnlineStats) Add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	delta2 := x - s.mean
	s.m2 += delta * delta2
}

// N returns the number of samples folded in.
func (s *OnlineStats) N() int { return s.n }

// Mean returns the running mean, or 0 if no samples have been added.
func (s *OnlineStats) Mean() float64 { return s.mean }

// Variance returns the running (population) variance, or 0 if fewer than
// two samples have been added.
func (s *OnlineStats) Variance() float64 {
	if s.n < 2 {
		return 0
	}
	return s.m2 / float64(s.n)
}
