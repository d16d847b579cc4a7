package rqalsh

import (
	"math"

	"github.com/HuangQiang/RQALSH/internal/rstat"
)

// params holds the values §4.5 derives from the user-supplied B, beta_raw,
// delta, c, n.
type params struct {
	w, p1, p2, alpha float64
	m, l             int
}

// calcParams derives (w, p1, p2, alpha, m, l) exactly per spec.md §4.5.
func calcParams(betaRaw int, n int, delta, c float64) params {
	beta := float64(betaRaw) / float64(n)

	w := math.Sqrt(8 * math.Log(c) / (c*c - 1))
	p1 := 1 - calcL2Prob(w/2)
	p2 := 1 - calcL2Prob(w * c / 2)

	para1 := math.Sqrt(math.Log(2 / beta))
	para2 := math.Sqrt(math.Log(1 / delta))
	para3 := 2 * (p1 - p2) * (p1 - p2)

	eta := para1 / para2
	alpha := (eta*p1 + p2) / (1 + eta)

	m := int(math.Ceil((para1 + para2) * (para1 + para2) / para3))
	l := int(math.Ceil(alpha * float64(m)))

	return params{w: w, p1: p1, p2: p2, alpha: alpha, m: m, l: l}
}

// calcL2Prob is the standard normal CDF used to derive p1/p2.
func calcL2Prob(x float64) float64 {
	return rstat.PhiStdNormal(x)
}
