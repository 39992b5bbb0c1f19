package ecc

import (
	"context"
	"runtime"
	"sort"

	"github.com/pkg/errors"
	"github.com/vivint/infectious"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

// Protected is a peptide stream with its parity peptides, in transmission
// order, and what is needed to recover the data peptides from it.
type Protected struct {
	Profile Profile
	// Layout is the byte aligned layout every transmitted peptide follows.
	Layout peptide.Layout
	// Peptides is the transmitted stream: each block's data peptides followed
	// by its parity peptides.
	Peptides []string
	// DataCount is the number of data peptides.
	DataCount int

	blocks []block
	order  []int
	slots  map[int]int
}

type block struct {
	// first interleaved data position
	start int
	size  int
	// first transmission slot
	slot int
}

// Report summarises a recovery.
type Report struct {
	// Erasures is the number of slots that were missing or unreadable.
	Erasures int
	// Corrected is the number of symbols the decoder changed.
	Corrected int
	// FailedBlocks lists the blocks beyond correction capacity.
	FailedBlocks []int
}

// Protect adds parity peptides to mapping. The mapping payload must fit the
// byte aligned layout (see peptide.Layout.ByteAligned).
func Protect(ctx context.Context, mapping peptide.Mapping, profile Profile) (*Protected, error) {
	switch profile.Kind {
	case KindNone:
		return &Protected{
			Profile:   profile,
			Layout:    mapping.Layout,
			Peptides:  mapping.Peptides,
			DataCount: len(mapping.Peptides),
		}, nil
	case KindFountain:
		return nil, failure.Configf("profile %s protects droplets, not peptides", profile.Name)
	}

	aligned := mapping.Layout.ByteAligned()
	if aligned.RowBytes() == 0 {
		return nil, failure.Configf("payload of %d residues holds no whole byte", aligned.PayloadLength())
	}

	if mapping.Layout.PayloadResidues > aligned.PayloadResidues {
		return nil, failure.Configf("mapping carries %d payload residues, byte aligned layout allows %d",
			mapping.Layout.PayloadResidues, aligned.PayloadResidues)
	}

	if profile.DataSymbols < 1 || profile.ParitySymbols < 1 {
		return nil, failure.Configf("profile %s: needs data and parity symbols, got %d+%d",
			profile.Name, profile.DataSymbols, profile.ParitySymbols)
	}

	if profile.DataSymbols+profile.ParitySymbols > maxCodeword {
		return nil, failure.Configf("profile %s: %d+%d symbols exceed a codeword",
			profile.Name, profile.DataSymbols, profile.ParitySymbols)
	}

	prot := newProtected(profile, aligned, len(mapping.Peptides))
	if total := prot.DataCount + len(prot.blocks)*profile.ParitySymbols; total > aligned.MaxPeptides() {
		return nil, failure.Configf("%d peptides do not fit in an index of %d residues", total, aligned.IndexLength)
	}

	rows := make([][]byte, len(mapping.Peptides))
	for i, p := range mapping.Peptides {
		row, ok := rowOf(p, aligned)
		if !ok {
			return nil, failure.Configf("data peptide %d does not follow layout %d/%d", i, aligned.Length, aligned.IndexLength)
		}

		rows[i] = row
	}

	parity := make([][][]byte, len(prot.blocks))
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(runtime.GOMAXPROCS(0))

	for b := range prot.blocks {
		b := b

		errGrp.Go(func() error {
			if err := dCtx.Err(); err != nil {
				return err
			}

			out, err := prot.encodeBlock(prot.blocks[b], rows)
			if err != nil {
				return errors.Wrapf(err, "block %d", b)
			}

			parity[b] = out

			return nil
		})
	}

	if err := errGrp.Wait(); err != nil {
		return nil, err
	}

	prot.Peptides = make([]string, 0, len(prot.slots))
	label := prot.DataCount

	for b, blk := range prot.blocks {
		for q := blk.start; q < blk.start+blk.size; q++ {
			prot.Peptides = append(prot.Peptides, mapping.Peptides[prot.order[q]])
		}

		for _, row := range parity[b] {
			prot.Peptides = append(prot.Peptides, peptideOf(row, label, aligned))
			label++
		}
	}

	return prot, nil
}

func newProtected(profile Profile, layout peptide.Layout, dataCount int) *Protected {
	prot := &Protected{
		Profile:   profile,
		Layout:    layout,
		DataCount: dataCount,
		order:     InterleaveOrder(dataCount, profile.InterleaveDepth),
		slots:     make(map[int]int),
	}

	slot := 0
	parityLabel := dataCount

	for start := 0; start < dataCount; start += profile.DataSymbols {
		size := profile.DataSymbols
		if start+size > dataCount {
			size = dataCount - start
		}

		prot.blocks = append(prot.blocks, block{start: start, size: size, slot: slot})

		for q := start; q < start+size; q++ {
			prot.slots[prot.order[q]] = slot
			slot++
		}

		for j := 0; j < profile.ParitySymbols; j++ {
			prot.slots[parityLabel] = slot
			parityLabel++
			slot++
		}
	}

	return prot
}

// fec returns the codec of a block: its data rows are shares 0..size-1 and
// its parity rows follow.
func (p *Protected) fec(blk block) (*infectious.FEC, error) {
	fec, err := infectious.NewFEC(blk.size, blk.size+p.Profile.ParitySymbols)
	if err != nil {
		return nil, errors.Wrap(err, "new fec")
	}

	return fec, nil
}

func (p *Protected) encodeBlock(blk block, rows [][]byte) ([][]byte, error) {
	fec, err := p.fec(blk)
	if err != nil {
		return nil, err
	}

	width := p.Layout.RowBytes()
	input := make([]byte, 0, blk.size*width)

	for r := 0; r < blk.size; r++ {
		input = append(input, rows[p.order[blk.start+r]]...)
	}

	out := make([][]byte, p.Profile.ParitySymbols)

	err = fec.Encode(input, func(share infectious.Share) {
		if share.Number < blk.size {
			return
		}

		out[share.Number-blk.size] = append([]byte(nil), share.Data...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}

	return out, nil
}

// Recover rebuilds the data peptides, in their original order, from the
// peptides that came out of the channel. On UncorrectableError the returned
// peptides are still complete: failed blocks carry what was received.
func (p *Protected) Recover(ctx context.Context, received []string) ([]string, Report, error) {
	if p.Profile.Kind != KindReedSolomon {
		return received, Report{}, nil
	}

	total := len(p.slots)
	rows := make([][]byte, total)
	claims := make([]int, total)

	for pos, pep := range received {
		slot := pos
		if p.Layout.IndexLength > 0 {
			label, ok := p.Layout.ParseIndex(pep)
			if !ok {
				continue
			}

			slot, ok = p.slots[label]
			if !ok {
				continue
			}
		}

		if slot >= total {
			continue
		}

		claims[slot]++

		if row, ok := rowOf(pep, p.Layout); ok {
			rows[slot] = row
		}
	}

	for slot, count := range claims {
		if count > 1 {
			rows[slot] = nil
		}
	}

	var (
		report  Report
		results = make([]blockResult, len(p.blocks))
	)

	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(runtime.GOMAXPROCS(0))

	for b := range p.blocks {
		b := b

		errGrp.Go(func() error {
			if err := dCtx.Err(); err != nil {
				return err
			}

			results[b] = p.decodeBlock(p.blocks[b], rows)

			return nil
		})
	}

	if err := errGrp.Wait(); err != nil {
		return nil, report, err
	}

	data := make([][]byte, p.DataCount)

	for b, blk := range p.blocks {
		res := results[b]
		report.Erasures += res.erasures
		report.Corrected += res.corrected

		if res.failed {
			report.FailedBlocks = append(report.FailedBlocks, b)
		}

		for r := 0; r < blk.size; r++ {
			data[p.order[blk.start+r]] = res.rows[r]
		}
	}

	out := make([]string, p.DataCount)
	for i, row := range data {
		if row == nil {
			row = make([]byte, p.Layout.RowBytes())
		}

		out[i] = peptideOf(row, i, p.Layout)
	}

	if len(report.FailedBlocks) > 0 {
		sort.Ints(report.FailedBlocks)

		return out, report, failure.Uncorrectablef("%d of %d blocks exceed %d parity symbols (first failed block %d)",
			len(report.FailedBlocks), len(p.blocks), p.Profile.ParitySymbols, report.FailedBlocks[0])
	}

	return out, report, nil
}

type blockResult struct {
	rows      [][]byte
	erasures  int
	corrected int
	failed    bool
}

func (p *Protected) decodeBlock(blk block, rows [][]byte) blockResult {
	n := blk.size + p.Profile.ParitySymbols
	width := p.Layout.RowBytes()
	res := blockResult{rows: make([][]byte, blk.size)}

	for r := range res.rows {
		res.rows[r] = rows[blk.slot+r]
	}

	shares := make([]infectious.Share, 0, n)
	for i := 0; i < n; i++ {
		row := rows[blk.slot+i]
		if row == nil {
			res.erasures++
			continue
		}

		shares = append(shares, infectious.Share{Number: i, Data: append([]byte(nil), row...)})
	}

	if res.erasures > p.Profile.ParitySymbols {
		res.failed = true
		return res
	}

	fec, err := p.fec(blk)
	if err != nil {
		res.failed = true
		return res
	}

	if err := fec.Correct(shares); err != nil {
		res.failed = true
		return res
	}

	// a column may only change within the remaining correction capacity,
	// more means the decoder settled on another codeword.
	changed := make([]int, width)
	for _, share := range shares {
		orig := rows[blk.slot+share.Number]
		for c := range share.Data {
			if share.Data[c] != orig[c] {
				changed[c]++
				res.corrected++
			}
		}
	}

	for _, ch := range changed {
		if 2*ch+res.erasures > p.Profile.ParitySymbols {
			res.failed = true
			res.corrected = 0

			return res
		}
	}

	corrected := make([][]byte, blk.size)

	err = fec.Rebuild(shares, func(share infectious.Share) {
		corrected[share.Number] = append([]byte(nil), share.Data...)
	})
	if err != nil {
		res.failed = true
		res.corrected = 0

		return res
	}

	res.rows = corrected

	return res
}
