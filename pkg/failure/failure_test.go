package failure_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/askiada/go-pepstore/pkg/failure"
)

func TestModeOf(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err  error
		want failure.Mode
	}{
		"nil":           {err: nil, want: failure.ModeNone},
		"config":        {err: failure.Configf("index length %d", 3), want: failure.ModeConfig},
		"decode":        {err: failure.Decodef("peptide %d", 1), want: failure.ModeDecode},
		"uncorrectable": {err: failure.Uncorrectablef("block %d", 0), want: failure.ModeUncorrectable},
		"stall":         {err: failure.Stallf("resolved %d of %d", 1, 2), want: failure.ModeFountainStall},
		"score feed":    {err: failure.ScoreFeedf("batch %d", 4), want: failure.ModeScoreFeed},
		"wrapped twice": {err: errors.Wrap(failure.Decodef("header"), "huffman"), want: failure.ModeDecode},
		"foreign":       {err: assert.AnError, want: failure.ModeUnknown},
	}

	for name, tc := range tcs {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, failure.ModeOf(tc.err))
		})
	}
}

func TestConfigfKeepsMessage(t *testing.T) {
	t.Parallel()

	err := failure.Configf("index length %d exceeds peptide length %d", 20, 18)
	assert.ErrorIs(t, err, failure.ErrConfig)
	assert.Contains(t, err.Error(), "index length 20 exceeds peptide length 18")
}
