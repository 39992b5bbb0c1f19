package batch

import (
	"gonum.org/v1/gonum/stat"

	"github.com/askiada/go-pepstore/pkg/dispatch"
	"github.com/askiada/go-pepstore/pkg/failure"
)

// Summary aggregates the results of a batch.
type Summary struct {
	Items     int `json:"items" msgpack:"items"`
	Succeeded int `json:"succeeded" msgpack:"succeeded"`
	Failed    int `json:"failed" msgpack:"failed"`
	Degraded  int `json:"degraded" msgpack:"degraded"`

	SuccessRate float64 `json:"success_rate" msgpack:"success_rate"`
	MeanBER     float64 `json:"mean_bit_error_rate" msgpack:"mean_bit_error_rate"`
	StdDevBER   float64 `json:"stddev_bit_error_rate" msgpack:"stddev_bit_error_rate"`

	FailureModes map[failure.Mode]int `json:"failure_modes" msgpack:"failure_modes"`
}

// Summarize counts outcomes and describes the bit error rate of results. The
// standard deviation is the sample one and is 0 below two results.
func Summarize(results []dispatch.Result) Summary {
	s := Summary{
		Items:        len(results),
		FailureModes: map[failure.Mode]int{},
	}
	if len(results) == 0 {
		return s
	}

	bers := make([]float64, len(results))

	for i, res := range results {
		bers[i] = res.BitErrorRate

		if res.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}

		if res.Degraded {
			s.Degraded++
		}

		if res.FailureMode != failure.ModeNone {
			s.FailureModes[res.FailureMode]++
		}
	}

	s.SuccessRate = float64(s.Succeeded) / float64(s.Items)

	if len(bers) < 2 {
		s.MeanBER = bers[0]

		return s
	}

	s.MeanBER, s.StdDevBER = stat.MeanStdDev(bers, nil)

	return s
}
