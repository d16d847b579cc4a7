// Package rstat supplies the numeric primitives RQALSH's parameter
// derivation and hash-function generation need: a standard normal
// sampler and the standard normal CDF.
package rstat

import (
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Source wraps a standard-normal distribution seeded once from wall-clock
// time, shared by every projection drawn within a single process. Per
// spec, it is seeded from wall-clock at process start, not per index, so
// rebuilding an index without restarting the process yields different
// projections.
type Source struct {
	dist distuv.Normal
}

// NewSource seeds a new Source from the current wall-clock time.
func NewSource() *Source {
	seed := uint64(time.Now().UnixNano())
	src := rand.NewSource(seed)
	return &Source{
		dist: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}
}

// Gaussian draws one standard-normal sample.
func (s *Source) Gaussian() float64 {
	return s.dist.Rand()
}

// GaussianMatrix fills a flat m*d row-major slice with i.i.d. standard
// normal samples, used to build the m projection vectors of dimension d.
func (s *Source) GaussianMatrix(m, d int) []float64 {
	out := make([]float64, m*d)
	for i := range out {
		out[i] = s.Gaussian()
	}
	return out
}

// PhiStdNormal is the standard normal CDF Phi(x), computed exactly via
// gonum rather than a hand-rolled rational approximation.
func PhiStdNormal(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
