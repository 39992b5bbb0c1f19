// Package failure defines the error taxonomy shared by the codecs, the
// protection layers and the dispatcher.
package failure

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfig reports an invalid configuration or a geometry that cannot hold the input.
	ErrConfig = errors.New("invalid configuration")
	// ErrDecode reports a stream that cannot be decoded.
	ErrDecode = errors.New("decode failed")
	// ErrUncorrectable reports a Reed-Solomon block beyond its correction capacity.
	ErrUncorrectable = errors.New("uncorrectable block")
	// ErrFountainStall reports a peeling decoder that ran out of degree-1 droplets.
	ErrFountainStall = errors.New("fountain decoder stalled")
	// ErrScoreFeed reports a score feed that could not be reached.
	ErrScoreFeed = errors.New("score feed unavailable")
)

// Mode is the failure tag written to run reports.
type Mode string

const (
	ModeNone          Mode = ""
	ModeConfig        Mode = "config"
	ModeDecode        Mode = "decode"
	ModeUncorrectable Mode = "uncorrectable"
	ModeFountainStall Mode = "fountain_stall"
	ModeScoreFeed     Mode = "score_feed"
	ModeUnknown       Mode = "unknown"
)

// ModeOf returns the report tag for err.
func ModeOf(err error) Mode {
	switch {
	case err == nil:
		return ModeNone
	case errors.Is(err, ErrConfig):
		return ModeConfig
	case errors.Is(err, ErrUncorrectable):
		return ModeUncorrectable
	case errors.Is(err, ErrFountainStall):
		return ModeFountainStall
	case errors.Is(err, ErrDecode):
		return ModeDecode
	case errors.Is(err, ErrScoreFeed):
		return ModeScoreFeed
	default:
		return ModeUnknown
	}
}

// Configf wraps ErrConfig with a formatted message.
func Configf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, format, args...)
}

// Decodef wraps ErrDecode with a formatted message.
func Decodef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDecode, format, args...)
}

// Uncorrectablef wraps ErrUncorrectable with a formatted message.
func Uncorrectablef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUncorrectable, format, args...)
}

// Stallf wraps ErrFountainStall with a formatted message.
func Stallf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFountainStall, format, args...)
}

// ScoreFeedf wraps ErrScoreFeed with a formatted message.
func ScoreFeedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrScoreFeed, format, args...)
}
