// Package ecc protects peptide streams with Reed-Solomon parity peptides and
// resolves the named protection profiles, including fountain overheads.
package ecc

import (
	"sort"
	"strconv"

	"github.com/askiada/go-pepstore/pkg/failure"
)

// Kind is the protection family of a profile.
type Kind int

const (
	KindNone Kind = iota
	KindReedSolomon
	KindFountain
)

func (k Kind) String() string {
	switch k {
	case KindReedSolomon:
		return "reed-solomon"
	case KindFountain:
		return "fountain"
	default:
		return "none"
	}
}

// Profile is a named protection setting.
type Profile struct {
	Name string
	Kind Kind
	// DataSymbols is the number of data peptides per Reed-Solomon block.
	DataSymbols int
	// ParitySymbols is the number of parity peptides per Reed-Solomon block.
	ParitySymbols int
	// SymbolBits is the width of a codeword symbol.
	SymbolBits int
	// InterleaveDepth spreads consecutive data peptides across blocks.
	InterleaveDepth int
	// Overhead is the fraction of extra droplets of a fountain profile.
	Overhead float64
}

const (
	blockData   = 24
	maxCodeword = 256
	symbolBits  = 8
)

var registry = buildRegistry()

func buildRegistry() map[string]Profile {
	profiles := map[string]Profile{
		"none": {Name: "none", Kind: KindNone},
	}

	for _, parity := range []int{4, 8, 16, 32, 64, 128, 200, 201} {
		name := "rs" + strconv.Itoa(parity)
		profiles[name] = rsProfile(name, parity, 1)
	}

	profiles["rs64_int4"] = rsProfile("rs64_int4", 64, 4)
	profiles["rs8_int4"] = rsProfile("rs8_int4", 8, 4)

	for name, overhead := range map[string]float64{
		"fnt05":  0.05,
		"fnt10":  0.10,
		"fnt20":  0.20,
		"fnt30":  0.30,
		"fnt50":  0.50,
		"fnt75":  0.75,
		"fnt100": 1.00,
		"fnt150": 1.50,
		"fnt200": 2.00,
	} {
		profiles[name] = Profile{Name: name, Kind: KindFountain, Overhead: overhead}
	}

	return profiles
}

func rsProfile(name string, parity, depth int) Profile {
	return Profile{
		Name:            name,
		Kind:            KindReedSolomon,
		DataSymbols:     blockData,
		ParitySymbols:   parity,
		SymbolBits:      symbolBits,
		InterleaveDepth: depth,
	}
}

// ResolveProfile looks a profile up by name.
func ResolveProfile(name string) (Profile, error) {
	profile, ok := registry[name]
	if !ok {
		return Profile{}, failure.Configf("unknown ecc profile %q", name)
	}

	return profile, nil
}

// ProfileNames lists every registered profile, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
