package fountain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DegreeCDF returns the cumulative robust soliton distribution over the
// degrees 1..k: cdf[d-1] is the probability of a degree <= d.
//
// R = c*ln(k/delta)*sqrt(k); the spike sits at floor(k/R) clamped to [1, k]
// and a negative spike weight is dropped. The last entry is forced to 1.
func DegreeCDF(k int, c, delta float64) []float64 {
	if k <= 1 {
		return []float64{1}
	}

	kf := float64(k)
	mu := make([]float64, k)
	mu[0] = 1 / kf

	for d := 2; d <= k; d++ {
		mu[d-1] = 1 / float64(d*(d-1))
	}

	r := c * math.Log(kf/delta) * math.Sqrt(kf)
	if r > 0 {
		spike := int(kf / r)
		if spike < 1 {
			spike = 1
		}

		if spike > k {
			spike = k
		}

		for d := 1; d < spike; d++ {
			mu[d-1] += r / (float64(d) * kf)
		}

		if v := r * math.Log(r/delta) / kf; v > 0 {
			mu[spike-1] += v
		}
	}

	floats.Scale(1/floats.Sum(mu), mu)

	cdf := floats.CumSum(make([]float64, k), mu)
	cdf[k-1] = 1

	return cdf
}

// SampleDegree returns the first degree whose cumulative probability is >= u.
func SampleDegree(cdf []float64, u float64) int {
	i := sort.SearchFloat64s(cdf, u)
	if i >= len(cdf) {
		return len(cdf)
	}

	return i + 1
}
