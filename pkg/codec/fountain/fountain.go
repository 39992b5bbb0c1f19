// Package fountain is an LT fountain codec whose droplets span whole peptides.
//
// Source bytes are split into K symbols. Each droplet carries the XOR of a
// seed-determined subset of symbols, a header (seed, degree) and a CRC, so that
// any large enough set of intact droplets, in any order, rebuilds the data.
package fountain

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-pepstore/pkg/failure"
	"github.com/askiada/go-pepstore/pkg/peptide"
)

// Params tunes the encoder.
type Params struct {
	// SymbolSize is the requested source symbol size in bytes. It is clamped
	// down to what a droplet can carry.
	SymbolSize int
	// Overhead is the fraction of droplets sent beyond K.
	Overhead    float64
	SeedBytes   int
	DegreeBytes int
	CRCBytes    int
	// C and Delta shape the robust soliton distribution.
	C     float64
	Delta float64
	// Seed drives the droplet seeds. A nil seed uses the clock.
	Seed *uint64
	// MaxBytes bounds the input size.
	MaxBytes   int
	Systematic bool
}

// DefaultParams returns the encoder defaults.
func DefaultParams() Params {
	return Params{
		SymbolSize:  17,
		Overhead:    0.1,
		SeedBytes:   4,
		DegreeBytes: 2,
		CRCBytes:    4,
		C:           0.1,
		Delta:       0.5,
		MaxBytes:    1 << 20,
		Systematic:  true,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.SymbolSize < 1:
		return failure.Configf("fountain symbol size must be positive, got %d", p.SymbolSize)
	case p.Overhead < 0 || math.IsNaN(p.Overhead):
		return failure.Configf("fountain overhead must not be negative, got %v", p.Overhead)
	case p.SeedBytes < 1 || p.SeedBytes > 8:
		return failure.Configf("fountain seed bytes must be in [1, 8], got %d", p.SeedBytes)
	case p.DegreeBytes < 1 || p.DegreeBytes > 4:
		return failure.Configf("fountain degree bytes must be in [1, 4], got %d", p.DegreeBytes)
	case p.CRCBytes < 1 || p.CRCBytes > 4:
		return failure.Configf("fountain crc bytes must be in [1, 4], got %d", p.CRCBytes)
	case !(p.C > 0):
		return failure.Configf("fountain c must be positive, got %v", p.C)
	case !(p.Delta > 0):
		return failure.Configf("fountain delta must be positive, got %v", p.Delta)
	case p.MaxBytes < 0:
		return failure.Configf("fountain max bytes must not be negative, got %d", p.MaxBytes)
	}

	return nil
}

// Meta is what the decoder needs besides the received peptides.
type Meta struct {
	Layout             peptide.Layout
	DropletSize        int
	DropletCount       int
	PeptidesPerDroplet int
	SymbolSize         int
	PadBytes           int
	K                  int
	OriginalSize       int
	SeedBytes          int
	DegreeBytes        int
	CRCBytes           int
}

func (m Meta) format() format {
	return format{
		seedBytes:   m.SeedBytes,
		degreeBytes: m.DegreeBytes,
		crcBytes:    m.CRCBytes,
		symbolSize:  m.SymbolSize,
		padBytes:    m.PadBytes,
	}
}

// Encoded is the output of Encode.
type Encoded struct {
	Mapping  peptide.Mapping
	Droplets []Droplet
	Meta
}

// Stats describes a decoding attempt.
type Stats struct {
	Droplets int
	Valid    int
	Resolved int
	K        int
}

// Geometry sizes droplets for layout: the smallest whole number of peptides
// whose payload bits are byte aligned and hold the header, the CRC and at
// least one byte.
func Geometry(layout peptide.Layout, p Params) (Meta, error) {
	bitsPerPeptide := layout.PayloadBits()
	if bitsPerPeptide == 0 {
		return Meta{}, failure.Configf("layout %d/%d has no payload capacity", layout.Length, layout.IndexLength)
	}

	unitBits := lcm(bitsPerPeptide, 8)
	unitBytes := unitBits / 8
	overheadBytes := p.SeedBytes + p.DegreeBytes + p.CRCBytes

	units := 1
	for unitBytes*units-overheadBytes < 1 {
		units++
	}

	meta := Meta{
		Layout:             layout,
		DropletSize:        unitBytes * units,
		PeptidesPerDroplet: unitBits / bitsPerPeptide * units,
		SeedBytes:          p.SeedBytes,
		DegreeBytes:        p.DegreeBytes,
		CRCBytes:           p.CRCBytes,
	}

	capacity := meta.DropletSize - overheadBytes
	meta.SymbolSize = p.SymbolSize
	if meta.SymbolSize > capacity {
		meta.SymbolSize = capacity
	}

	meta.PadBytes = capacity - meta.SymbolSize

	return meta, nil
}

// Encode turns data into droplets laid out as peptides.
func Encode(data []byte, layout peptide.Layout, p Params) (Encoded, error) {
	if err := p.Validate(); err != nil {
		return Encoded{}, err
	}

	if len(data) > p.MaxBytes {
		return Encoded{}, failure.Configf("fountain input of %d bytes exceeds the %d byte limit", len(data), p.MaxBytes)
	}

	meta, err := Geometry(layout, p)
	if err != nil {
		return Encoded{}, err
	}

	meta.OriginalSize = len(data)
	meta.K = (len(data) + meta.SymbolSize - 1) / meta.SymbolSize
	if meta.K == 0 {
		meta.K = 1
	}

	meta.DropletCount = int(math.Ceil(float64(meta.K) * (1 + p.Overhead)))

	seedMask := mask(p.SeedBytes)
	if p.Systematic && uint64(meta.K-1) > seedMask {
		return Encoded{}, failure.Configf("%d systematic droplets do not fit %d seed bytes", meta.K, p.SeedBytes)
	}

	symbols := make([][]byte, meta.K)
	for i := range symbols {
		symbols[i] = make([]byte, meta.SymbolSize)
		if start := i * meta.SymbolSize; start < len(data) {
			copy(symbols[i], data[start:])
		}
	}

	master := p.Seed
	if master == nil {
		now := uint64(time.Now().UnixNano())
		master = &now
	}

	rng := rand.New(rand.NewPCG(*master, masterStream))
	cdf := DegreeCDF(meta.K, p.C, p.Delta)

	maxDegree := int(mask(p.DegreeBytes))
	if maxDegree > meta.K {
		maxDegree = meta.K
	}

	enc := Encoded{Meta: meta, Droplets: make([]Droplet, 0, meta.DropletCount)}
	f := meta.format()
	stream := make([]byte, 0, meta.DropletCount*meta.DropletSize)

	for i := 0; i < meta.DropletCount; i++ {
		var seed uint64

		degree := 1
		if p.Systematic && i < meta.K {
			seed = uint64(i)
		} else {
			seed = rng.Uint64() & seedMask
			degree = degreeFor(seed, cdf)
		}

		if degree > maxDegree {
			degree = maxDegree
		}

		payload := make([]byte, meta.SymbolSize)
		for _, idx := range Indices(seed, degree, meta.K) {
			xorInto(payload, symbols[idx])
		}

		drop := Droplet{Seed: seed, Degree: degree, Payload: payload}
		enc.Droplets = append(enc.Droplets, drop)
		stream = append(stream, f.marshal(drop)...)
	}

	enc.Mapping, err = peptide.BytesToPeptides(stream, layout)
	if err != nil {
		return Encoded{}, errors.Wrap(err, "fountain")
	}

	return enc, nil
}

// Decode rebuilds the data from the peptides that came out of the channel.
// Peptides are placed by index or position, droplets failing their CRC are
// discarded and the rest are peeled.
func Decode(received []string, meta Meta) ([]byte, Stats, error) {
	stats := Stats{Droplets: meta.DropletCount, K: meta.K}
	if meta.K < 1 || meta.DropletSize < 1 {
		return nil, stats, failure.Decodef("invalid fountain metadata: k=%d droplet size=%d", meta.K, meta.DropletSize)
	}

	total := meta.DropletCount * meta.PeptidesPerDroplet
	bits := peptide.RecoverBits(received, meta.Layout, total, 0)

	stream, err := bits.Bytes()
	if err != nil {
		return nil, stats, failure.Decodef("droplet stream: %v", err)
	}

	f := meta.format()
	dec := NewDecoder(meta.K, meta.SymbolSize)

	for i := 0; i < meta.DropletCount; i++ {
		start := i * meta.DropletSize
		if start+meta.DropletSize > len(stream) {
			break
		}

		drop, ok := f.unmarshal(stream[start : start+meta.DropletSize])
		if !ok {
			continue
		}

		stats.Valid++

		degree := drop.Degree
		if degree > meta.K {
			degree = meta.K
		}

		dec.Add(Indices(drop.Seed, degree, meta.K), drop.Payload)
	}

	stats.Resolved = dec.Resolved()

	out, err := dec.Bytes(meta.OriginalSize)
	if err != nil {
		return nil, stats, errors.Wrapf(err, "%d of %d droplets valid", stats.Valid, stats.Droplets)
	}

	return out, stats, nil
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}

	return a
}
