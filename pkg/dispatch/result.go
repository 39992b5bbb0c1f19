package dispatch

import (
	"io"
	"math/bits"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/askiada/go-pepstore/pkg/channel"
	"github.com/askiada/go-pepstore/pkg/failure"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Timings are the wall-clock durations of a run. Encode includes the
// protection step and Decode the recovery step.
type Timings struct {
	Encode  time.Duration `json:"encode" msgpack:"encode"`
	Corrupt time.Duration `json:"corrupt" msgpack:"corrupt"`
	Decode  time.Duration `json:"decode" msgpack:"decode"`
	Total   time.Duration `json:"total" msgpack:"total"`
}

// Result is the outcome of one run. Every field is set, with zero values
// when a stage did not happen.
type Result struct {
	Name       string `json:"name" msgpack:"name"`
	Encoder    string `json:"encoder" msgpack:"encoder"`
	ECCProfile string `json:"ecc_profile" msgpack:"ecc_profile"`
	// Status is ok when decoding produced bytes, failed otherwise.
	Status       string  `json:"status" msgpack:"status"`
	OriginalSize int     `json:"original_size" msgpack:"original_size"`
	DecodedSize  int     `json:"decoded_size" msgpack:"decoded_size"`
	SizeDelta    int     `json:"size_delta" msgpack:"size_delta"`
	Success      bool    `json:"success" msgpack:"success"`
	ByteErrors   int     `json:"byte_errors" msgpack:"byte_errors"`
	BitErrors    int     `json:"bit_errors" msgpack:"bit_errors"`
	BitErrorRate float64 `json:"bit_error_rate" msgpack:"bit_error_rate"`

	Timings Timings `json:"timings" msgpack:"timings"`

	DropletsTotal int `json:"droplets_total" msgpack:"droplets_total"`
	DropletsValid int `json:"droplets_valid" msgpack:"droplets_valid"`
	SourceSymbols int `json:"source_symbols" msgpack:"source_symbols"`

	PeptidesSent     int `json:"peptides_sent" msgpack:"peptides_sent"`
	PeptidesReceived int `json:"peptides_received" msgpack:"peptides_received"`

	Erasures     int   `json:"erasures" msgpack:"erasures"`
	Corrected    int   `json:"corrected" msgpack:"corrected"`
	FailedBlocks []int `json:"failed_blocks" msgpack:"failed_blocks"`

	FailureMode failure.Mode `json:"failure_mode" msgpack:"failure_mode"`
	Error       string       `json:"error" msgpack:"error"`
	Degraded    bool         `json:"degraded" msgpack:"degraded"`
	Warnings    []string     `json:"warnings" msgpack:"warnings"`

	ScoreStats *channel.ScoreStats `json:"score_stats,omitempty" msgpack:"score_stats,omitempty"`

	// Decoded is the decoded output. It is not part of the report.
	Decoded []byte `json:"-" msgpack:"-"`
}

func newResult(name, encoder, profile string, originalSize int) Result {
	return Result{
		Name:         name,
		Encoder:      encoder,
		ECCProfile:   profile,
		Status:       StatusFailed,
		OriginalSize: originalSize,
		FailedBlocks: []int{},
		Warnings:     []string{},
	}
}

// fail records err unless an earlier failure is already recorded.
func (r *Result) fail(err error) {
	if r.FailureMode != failure.ModeNone {
		return
	}

	r.FailureMode = failure.ModeOf(err)
	r.Error = err.Error()
}

func (r *Result) warn(msg string) {
	r.Degraded = true
	r.Warnings = append(r.Warnings, msg)
}

// score compares decoded with original. A missing output counts every
// original byte as wrong.
func (r *Result) score(original, decoded []byte) {
	r.Decoded = decoded
	r.DecodedSize = len(decoded)
	r.SizeDelta = len(decoded) - len(original)
	r.ByteErrors, r.BitErrors = compare(original, decoded)
	r.Success = r.FailureMode == failure.ModeNone && r.ByteErrors == 0

	switch {
	case len(original) > 0:
		r.BitErrorRate = float64(r.BitErrors) / float64(8*len(original))
	case len(decoded) > 0 || r.FailureMode != failure.ModeNone:
		r.BitErrorRate = 1
	}
}

// compare counts differing bytes and bits; extra or missing bytes count as
// 1 byte and 8 bits each.
func compare(a, b []byte) (byteErrors, bitErrors int) {
	common := len(a)
	if len(b) < common {
		common = len(b)
	}

	for i := 0; i < common; i++ {
		if a[i] != b[i] {
			byteErrors++
			bitErrors += bits.OnesCount8(a[i] ^ b[i])
		}
	}

	delta := len(a) - len(b)
	if delta < 0 {
		delta = -delta
	}

	return byteErrors + delta, bitErrors + 8*delta
}

// WriteResults encodes results with msgpack.
func WriteResults(w io.Writer, results []Result) error {
	if err := msgpack.NewEncoder(w).Encode(results); err != nil {
		return errors.Wrap(err, "failed to encode results")
	}

	return nil
}

// ReadResults decodes results written by WriteResults.
func ReadResults(r io.Reader) ([]Result, error) {
	var results []Result
	if err := msgpack.NewDecoder(r).Decode(&results); err != nil {
		return nil, errors.Wrap(err, "failed to decode results")
	}

	return results, nil
}
