package rstat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhiStdNormalKnownValues(t *testing.T) {
	require.InDelta(t, 0.5, PhiStdNormal(0), 1e-4)
	require.InDelta(t, 0.8413, PhiStdNormal(1), 1e-3)
}

func TestGaussianMatrixShapeAndSpread(t *testing.T) {
	s := NewSource()
	m, d := 4, 3
	mat := s.GaussianMatrix(m, d)
	require.Len(t, mat, m*d)

	var sum, sumSq float64
	n := 20000
	for i := 0; i < n; i++ {
		v := s.Gaussian()
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	require.InDelta(t, 0, mean, 0.1)
	require.InDelta(t, 1, math.Sqrt(variance), 0.15)
}
