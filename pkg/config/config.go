// Package config holds the settings of a storage simulation run and loads
// them from YAML.
package config

import (
	"bytes"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-pepstore/pkg/channel"
	"github.com/askiada/go-pepstore/pkg/codec/fountain"
	"github.com/askiada/go-pepstore/pkg/ecc"
	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

type Encoder string

const (
	EncoderHuffman  Encoder = "huffman"
	EncoderYinYang  Encoder = "yin_yang"
	EncoderFountain Encoder = "fountain"
)

type ErrorModel string

const (
	ErrorModelBasic  ErrorModel = "basic"
	ErrorModelScored ErrorModel = "scored"
)

// Config is the immutable configuration of a run.
type Config struct {
	Encoder    Encoder    `yaml:"encoder"`
	ErrorModel ErrorModel `yaml:"error_model"`

	PeptideLength int `yaml:"peptide_length"`
	IndexLength   int `yaml:"index_aa_length"`

	LossProb      float64 `yaml:"loss_prob"`
	MutationProb  float64 `yaml:"mutation_prob"`
	InsertionProb float64 `yaml:"insertion_prob"`
	ShuffleProb   float64 `yaml:"shuffle_prob"`
	ShufflePasses int     `yaml:"shuffle_passes"`
	// Seed drives the error model. Without it the fountain seed is used, and
	// without either every run draws a new one.
	Seed *uint64 `yaml:"seed"`

	ECCProfile string `yaml:"ecc_profile"`

	Fountain Fountain `yaml:",inline"`
	Score    Score    `yaml:",inline"`

	// Image handling switches. They are accepted and have no effect.
	ConvertImagesToPPM bool `yaml:"convert_images_to_ppm"`
	EmbedImageHeader   bool `yaml:"embed_image_header"`
}

// Fountain tunes the fountain encoder.
type Fountain struct {
	SymbolSize  int     `yaml:"fountain_symbol_size"`
	Overhead    float64 `yaml:"fountain_overhead"`
	SeedBytes   int     `yaml:"fountain_seed_bytes"`
	DegreeBytes int     `yaml:"fountain_degree_bytes"`
	CRCBytes    int     `yaml:"fountain_crc_bytes"`
	C           float64 `yaml:"fountain_c"`
	Delta       float64 `yaml:"fountain_delta"`
	Seed        *uint64 `yaml:"fountain_seed"`
	MaxBytes    int     `yaml:"fountain_max_bytes"`
	Systematic  bool    `yaml:"fountain_systematic"`
}

// Score tunes the scored error model and its feed.
type Score struct {
	RetrySleep      time.Duration `yaml:"score_retry_sleep"`
	MaxSleep        time.Duration `yaml:"score_max_sleep"`
	Timeout         time.Duration `yaml:"score_timeout"`
	BatchSize       int           `yaml:"score_batch_size"`
	MaxPayloadBytes int           `yaml:"score_batch_max_payload_bytes"`
	LossScale       float64       `yaml:"score_loss_scale"`
}

// Default returns the default configuration.
func Default() Config {
	fp := fountain.DefaultParams()

	return Config{
		Encoder:       EncoderHuffman,
		ErrorModel:    ErrorModelBasic,
		PeptideLength: 18,
		ShufflePasses: 1,
		ECCProfile:    "none",
		Fountain: Fountain{
			SymbolSize:  fp.SymbolSize,
			Overhead:    fp.Overhead,
			SeedBytes:   fp.SeedBytes,
			DegreeBytes: fp.DegreeBytes,
			CRCBytes:    fp.CRCBytes,
			C:           fp.C,
			Delta:       fp.Delta,
			MaxBytes:    fp.MaxBytes,
			Systematic:  fp.Systematic,
		},
		Score: Score{
			RetrySleep:      time.Second,
			MaxSleep:        30 * time.Second,
			Timeout:         30 * time.Second,
			BatchSize:       5000,
			MaxPayloadBytes: 200000,
			LossScale:       channel.DefaultLossScale,
		},
		ConvertImagesToPPM: true,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config")
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrap(err, path)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, failure.Configf("failed to parse YAML: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field and the combinations of encoder, error model
// and ECC profile.
func (c Config) Validate() error {
	switch c.Encoder {
	case EncoderHuffman, EncoderYinYang, EncoderFountain:
	default:
		return failure.Configf("unknown encoder %q", c.Encoder)
	}

	switch c.ErrorModel {
	case ErrorModelBasic, ErrorModelScored:
	default:
		return failure.Configf("unknown error model %q", c.ErrorModel)
	}

	if _, err := c.Layout(); err != nil {
		return err
	}

	if err := c.ChannelParams().Validate(); err != nil {
		return err
	}

	profile, err := ecc.ResolveProfile(c.ECCProfile)
	if err != nil {
		return err
	}

	switch {
	case c.Encoder == EncoderFountain && profile.Kind == ecc.KindReedSolomon:
		return failure.Configf("profile %s does not apply to the fountain encoder", profile.Name)
	case c.Encoder != EncoderFountain && profile.Kind == ecc.KindFountain:
		return failure.Configf("profile %s only applies to the fountain encoder", profile.Name)
	}

	if c.Encoder == EncoderFountain {
		if err := c.FountainParams().Validate(); err != nil {
			return err
		}
	}

	if c.ErrorModel == ErrorModelScored {
		if err := c.Score.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (s Score) validate() error {
	switch {
	case s.RetrySleep < 0:
		return failure.Configf("score_retry_sleep must not be negative, got %s", s.RetrySleep)
	case s.MaxSleep < 0:
		return failure.Configf("score_max_sleep must not be negative, got %s", s.MaxSleep)
	case s.Timeout <= 0:
		return failure.Configf("score_timeout must be positive, got %s", s.Timeout)
	case s.BatchSize <= 0:
		return failure.Configf("score_batch_size must be positive, got %d", s.BatchSize)
	case s.MaxPayloadBytes <= 0:
		return failure.Configf("score_batch_max_payload_bytes must be positive, got %d", s.MaxPayloadBytes)
	case math.IsNaN(s.LossScale) || s.LossScale < 0 || s.LossScale > 1:
		return failure.Configf("score_loss_scale must be in [0, 1], got %v", s.LossScale)
	}

	return nil
}

// Layout returns the peptide geometry over the default alphabet.
func (c Config) Layout() (peptide.Layout, error) {
	return peptide.NewLayout(peptide.DefaultAlphabet, c.PeptideLength, c.IndexLength)
}

// Profile resolves the ECC profile.
func (c Config) Profile() (ecc.Profile, error) {
	return ecc.ResolveProfile(c.ECCProfile)
}

// ChannelParams returns the error model probabilities. Fountain droplets are
// erasure coded, so the fountain encoder loses whole peptides. Lost peptides
// stay as empty placeholders when there is no index to place them.
func (c Config) ChannelParams() channel.Params {
	params := channel.Params{
		Loss:          c.LossProb,
		Mutation:      c.MutationProb,
		Insertion:     c.InsertionProb,
		Shuffle:       c.ShuffleProb,
		ShufflePasses: c.ShufflePasses,
		Unit:          channel.UnitResidue,
		KeepEmpty:     c.IndexLength == 0,
	}
	if c.Encoder == EncoderFountain {
		params.Unit = channel.UnitPeptide
	}

	return params
}

// FountainParams returns the fountain encoder parameters. A fountain profile
// overrides fountain_overhead.
func (c Config) FountainParams() fountain.Params {
	params := fountain.Params{
		SymbolSize:  c.Fountain.SymbolSize,
		Overhead:    c.Fountain.Overhead,
		SeedBytes:   c.Fountain.SeedBytes,
		DegreeBytes: c.Fountain.DegreeBytes,
		CRCBytes:    c.Fountain.CRCBytes,
		C:           c.Fountain.C,
		Delta:       c.Fountain.Delta,
		Seed:        c.Fountain.Seed,
		MaxBytes:    c.Fountain.MaxBytes,
		Systematic:  c.Fountain.Systematic,
	}

	if profile, err := c.Profile(); err == nil && profile.Kind == ecc.KindFountain {
		params.Overhead = profile.Overhead
	}

	return params
}

// RetryPolicy returns the retry policy of the score feed.
func (c Config) RetryPolicy() channel.RetryPolicy {
	return channel.RetryPolicy{
		Initial:    c.Score.RetrySleep,
		MaxWindow:  c.Score.MaxSleep,
		Multiplier: 1.5,
	}
}

// BatchScorerOptions returns the score feed settings as scorer options.
func (c Config) BatchScorerOptions() []channel.BatchScorerOption {
	return []channel.BatchScorerOption{
		channel.WithBatchSize(c.Score.BatchSize),
		channel.WithMaxPayloadBytes(c.Score.MaxPayloadBytes),
		channel.WithRequestTimeout(c.Score.Timeout),
		channel.WithRetryPolicy(c.RetryPolicy()),
	}
}
