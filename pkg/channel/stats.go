package channel

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ScoreStats summarises the quality scores of a run and the loss
// probabilities derived from them.
type ScoreStats struct {
	Count     int     `json:"count" msgpack:"count"`
	Missing   int     `json:"missing" msgpack:"missing"`
	ScoreMean float64 `json:"score_mean" msgpack:"score_mean"`
	ScoreP10  float64 `json:"score_p10" msgpack:"score_p10"`
	ScoreP90  float64 `json:"score_p90" msgpack:"score_p90"`
	LossMean  float64 `json:"loss_mean" msgpack:"loss_mean"`
	LossP10   float64 `json:"loss_p10" msgpack:"loss_p10"`
	LossP90   float64 `json:"loss_p90" msgpack:"loss_p90"`
}

// NewScoreStats computes the statistics of scores q, each mapped to the loss
// probability (1-q)*scale. q must not be empty.
func NewScoreStats(q []float64, scale float64) ScoreStats {
	loss := make([]float64, len(q))
	for i, v := range q {
		loss[i] = (1 - v) * scale
	}

	sortedQ := append([]float64(nil), q...)
	sort.Float64s(sortedQ)
	sort.Float64s(loss)

	return ScoreStats{
		Count:     len(q),
		ScoreMean: stat.Mean(sortedQ, nil),
		ScoreP10:  percentile(sortedQ, 0.10),
		ScoreP90:  percentile(sortedQ, 0.90),
		LossMean:  stat.Mean(loss, nil),
		LossP10:   percentile(loss, 0.10),
		LossP90:   percentile(loss, 0.90),
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, pct float64) float64 {
	switch {
	case pct <= 0:
		return sorted[0]
	case pct >= 1:
		return sorted[len(sorted)-1]
	}

	pos := float64(len(sorted)-1) * pct
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}

	frac := pos - float64(lo)

	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
