// Package dispatch runs one item through encode, protect, corrupt, recover
// and decode, and reports how much of it survived.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/channel"
	"github.com/askiada/go-pepstore/pkg/codec/fountain"
	"github.com/askiada/go-pepstore/pkg/codec/huffman"
	"github.com/askiada/go-pepstore/pkg/codec/yinyang"
	"github.com/askiada/go-pepstore/pkg/config"
	"github.com/askiada/go-pepstore/pkg/ecc"
	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

// Stage is a step of a run.
type Stage int

const (
	StageEncode Stage = iota
	StageProtect
	StageCorrupt
	StageRecover
	StageDecode
	StageReport
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageEncode:
		return "encode"
	case StageProtect:
		return "protect"
	case StageCorrupt:
		return "corrupt"
	case StageRecover:
		return "recover"
	case StageDecode:
		return "decode"
	case StageReport:
		return "report"
	default:
		return "done"
	}
}

// Dispatcher runs items with one configuration. It is safe for concurrent use.
type Dispatcher struct {
	cfg     config.Config
	layout  peptide.Layout
	profile ecc.Profile

	logger    *slog.Logger
	scorer    channel.Scorer
	transport channel.Transport
	model     channel.Model
	now       func() time.Time
}

// New validates cfg and returns a dispatcher.
func New(cfg config.Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	var err error

	d.layout, err = cfg.Layout()
	if err != nil {
		return nil, err
	}

	d.profile, err = cfg.Profile()
	if err != nil {
		return nil, err
	}

	if d.scorer == nil && d.transport != nil {
		d.scorer, err = channel.NewBatchScorer(d.transport, cfg.BatchScorerOptions()...)
		if err != nil {
			return nil, err
		}
	}

	if cfg.ErrorModel == config.ErrorModelScored && d.scorer == nil && d.model == nil {
		return nil, failure.Configf("scored error model needs a scorer or a transport")
	}

	return d, nil
}

// Config returns the configuration of the dispatcher.
func (d *Dispatcher) Config() config.Config {
	return d.cfg
}

// payload is an encoded item and the way back to bytes.
type payload struct {
	mapping peptide.Mapping
	decode  func(received []string, res *Result) ([]byte, error)
}

type run struct {
	*Dispatcher
	name string
	data []byte
	res  Result

	payload   payload
	protected *ecc.Protected
	sent      []string
	received  []string
	decoded   []byte
}

// Run processes data, which is never modified. Data problems are recorded in
// the result and do not return an error. Configuration problems found while
// encoding and a cancelled context return an error alongside the result.
func (d *Dispatcher) Run(ctx context.Context, data []byte) (Result, error) {
	return d.RunNamed(ctx, "", data)
}

// RunNamed is Run with a name recorded in the result and the logs.
func (d *Dispatcher) RunNamed(ctx context.Context, name string, data []byte) (Result, error) {
	r := &run{
		Dispatcher: d,
		name:       name,
		data:       data,
		res:        newResult(name, string(d.cfg.Encoder), d.profile.Name, len(data)),
	}

	start := d.now()
	stage := StageEncode
	logger := d.logger.With(slog.String("item", name), slog.String("encoder", string(d.cfg.Encoder)))

	for stage != StageDone {
		stageStart := d.now()
		next, err := r.step(ctx, stage)
		elapsed := d.now().Sub(stageStart)

		switch stage {
		case StageEncode, StageProtect:
			r.res.Timings.Encode += elapsed
		case StageCorrupt:
			r.res.Timings.Corrupt += elapsed
		case StageRecover, StageDecode:
			r.res.Timings.Decode += elapsed
		}

		if err != nil {
			r.res.fail(err)
			r.res.score(data, nil)
			r.res.Timings.Total = d.now().Sub(start)
			logger.ErrorContext(ctx, "run aborted", slog.String("stage", stage.String()), slog.Any("error", err))

			return r.res, errors.Wrap(err, stage.String())
		}

		logger.DebugContext(ctx, "stage done", slog.String("stage", stage.String()), slog.Duration("elapsed", elapsed))
		stage = next
	}

	r.res.Timings.Total = d.now().Sub(start)

	for _, w := range r.res.Warnings {
		logger.WarnContext(ctx, "degraded run", slog.String("warning", w))
	}

	logger.InfoContext(ctx, "run finished",
		slog.Bool("success", r.res.Success),
		slog.String("status", r.res.Status),
		slog.String("failure_mode", string(r.res.FailureMode)),
		slog.Int("byte_errors", r.res.ByteErrors),
		slog.Float64("bit_error_rate", r.res.BitErrorRate),
		slog.Duration("total", r.res.Timings.Total),
	)

	return r.res, nil
}

// step runs stage and returns the next one. A returned error aborts the run.
func (r *run) step(ctx context.Context, stage Stage) (Stage, error) {
	if err := ctx.Err(); err != nil {
		return StageDone, err
	}

	switch stage {
	case StageEncode:
		return r.encode()
	case StageProtect:
		return r.protect(ctx)
	case StageCorrupt:
		return r.corrupt(ctx)
	case StageRecover:
		return r.recoverPeptides(ctx)
	case StageDecode:
		return r.decode()
	case StageReport:
		r.res.score(r.data, r.decoded)
		return StageDone, nil
	default:
		return StageDone, nil
	}
}

func (r *run) encode() (Stage, error) {
	layout := r.layout
	if r.profile.Kind == ecc.KindReedSolomon {
		layout = layout.ByteAligned()
	}

	var err error

	switch r.cfg.Encoder {
	case config.EncoderHuffman:
		r.payload, err = encodeHuffman(r.data, layout)
	case config.EncoderYinYang:
		r.payload, err = encodeYinYang(r.data, layout)
	case config.EncoderFountain:
		r.payload, err = encodeFountain(r.data, layout, r.cfg.FountainParams(), &r.res)
	default:
		err = failure.Configf("unknown encoder %q", r.cfg.Encoder)
	}

	if err != nil {
		return StageDone, err
	}

	r.sent = r.payload.mapping.Peptides
	if r.profile.Kind == ecc.KindReedSolomon {
		return StageProtect, nil
	}

	return StageCorrupt, nil
}

func (r *run) protect(ctx context.Context) (Stage, error) {
	prot, err := ecc.Protect(ctx, r.payload.mapping, r.profile)
	if err != nil {
		return StageDone, err
	}

	r.protected = prot
	r.sent = prot.Peptides

	return StageCorrupt, nil
}

func (r *run) corrupt(ctx context.Context) (Stage, error) {
	model, err := r.newModel()
	if err != nil {
		return StageDone, err
	}

	r.res.PeptidesSent = len(r.sent)

	outcome, err := model.Apply(ctx, r.sent)
	if err != nil {
		return StageDone, err
	}

	r.received = outcome.Peptides
	r.res.PeptidesReceived = len(outcome.Peptides)
	r.res.ScoreStats = outcome.ScoreStats

	for _, w := range outcome.Warnings {
		r.res.warn(w)
	}

	r.res.Degraded = r.res.Degraded || outcome.Degraded

	if r.protected != nil {
		return StageRecover, nil
	}

	return StageDecode, nil
}

func (r *run) recoverPeptides(ctx context.Context) (Stage, error) {
	recovered, report, err := r.protected.Recover(ctx, r.received)

	r.res.Erasures = report.Erasures
	r.res.Corrected = report.Corrected
	if report.FailedBlocks != nil {
		r.res.FailedBlocks = report.FailedBlocks
	}

	switch {
	case err == nil:
	case errors.Is(err, failure.ErrUncorrectable):
		r.res.fail(err)
	default:
		return StageDone, err
	}

	r.received = recovered

	return StageDecode, nil
}

func (r *run) decode() (Stage, error) {
	decoded, err := r.payload.decode(r.received, &r.res)
	if err != nil {
		r.res.fail(err)

		return StageReport, nil
	}

	r.decoded = decoded
	r.res.Status = StatusOK

	return StageReport, nil
}

// newModel returns the injected model or builds the configured one, seeded
// from the configuration or the clock.
// fountainChannelSalt keeps the channel stream distinct from the droplet
// stream when both derive from the fountain seed.
const fountainChannelSalt = 0x9e3779b97f4a7c15

func (r *run) newModel() (channel.Model, error) {
	if r.model != nil {
		return r.model, nil
	}

	seed := uint64(r.now().UnixNano())
	switch {
	case r.cfg.Seed != nil:
		seed = *r.cfg.Seed
	case r.cfg.Fountain.Seed != nil:
		// a fountain seed alone still makes the whole run reproducible
		seed = *r.cfg.Fountain.Seed ^ fountainChannelSalt
	}

	params := r.cfg.ChannelParams()

	if r.cfg.ErrorModel == config.ErrorModelScored {
		return channel.NewScored(r.scorer, r.cfg.Score.LossScale, params, r.layout.Alphabet, seed)
	}

	return channel.NewBasic(params, r.layout.Alphabet, seed)
}

func encodeHuffman(data []byte, layout peptide.Layout) (payload, error) {
	mapping, err := huffman.Encode(data, layout)
	if err != nil {
		return payload{}, err
	}

	return payload{
		mapping: mapping,
		decode: func(received []string, _ *Result) ([]byte, error) {
			bits := peptide.RecoverBits(received, mapping.Layout, len(mapping.Peptides), mapping.PadBits)

			return huffman.DecodeBits(bits)
		},
	}, nil
}

func encodeYinYang(data []byte, layout peptide.Layout) (payload, error) {
	enc, err := yinyang.Encode(data, layout)
	if err != nil {
		return payload{}, err
	}

	return payload{
		mapping: peptide.Mapping{Peptides: enc.Peptides, PadBits: enc.PadBits, Layout: layout},
		decode: func(received []string, _ *Result) ([]byte, error) {
			return yinyang.Decode(received, enc.Metadata)
		},
	}, nil
}

func encodeFountain(data []byte, layout peptide.Layout, params fountain.Params, res *Result) (payload, error) {
	enc, err := fountain.Encode(data, layout, params)
	if err != nil {
		return payload{}, err
	}

	res.DropletsTotal = enc.DropletCount
	res.SourceSymbols = enc.K

	return payload{
		mapping: enc.Mapping,
		decode: func(received []string, res *Result) ([]byte, error) {
			out, stats, err := fountain.Decode(received, enc.Meta)
			res.DropletsValid = stats.Valid

			return out, err
		},
	}, nil
}
