package fountain

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand/v2"
)

// PRNG stream selectors, so that the degree and the indices drawn from the
// same droplet seed are independent.
const (
	masterStream = 0x94d049bb133111eb
	degreeStream = 0x9e3779b97f4a7c15
	indexStream  = 0xbf58476d1ce4e5b9
)

// Droplet is one encoded packet: the XOR of Degree source symbols chosen by Seed.
type Droplet struct {
	Seed    uint64
	Degree  int
	Payload []byte
}

// format is the byte layout of a droplet:
// seed | degree | payload | zero pad | crc, integers big-endian.
type format struct {
	seedBytes   int
	degreeBytes int
	crcBytes    int
	symbolSize  int
	padBytes    int
}

func (f format) headerSize() int {
	return f.seedBytes + f.degreeBytes
}

func (f format) size() int {
	return f.headerSize() + f.symbolSize + f.padBytes + f.crcBytes
}

func (f format) marshal(d Droplet) []byte {
	out := make([]byte, f.size())
	putUint(out[:f.seedBytes], d.Seed)
	putUint(out[f.seedBytes:f.headerSize()], uint64(d.Degree))
	copy(out[f.headerSize():], d.Payload)

	body := out[:len(out)-f.crcBytes]
	putUint(out[len(body):], uint64(crc32.ChecksumIEEE(body)))

	return out
}

// unmarshal parses a droplet, rejecting a CRC mismatch or a zero degree.
func (f format) unmarshal(b []byte) (Droplet, bool) {
	if len(b) != f.size() {
		return Droplet{}, false
	}

	body := b[:len(b)-f.crcBytes]
	if readUint(b[len(body):]) != uint64(crc32.ChecksumIEEE(body))&mask(f.crcBytes) {
		return Droplet{}, false
	}

	d := Droplet{
		Seed:    readUint(b[:f.seedBytes]),
		Degree:  int(readUint(b[f.seedBytes:f.headerSize()])),
		Payload: b[f.headerSize() : f.headerSize()+f.symbolSize],
	}
	if d.Degree == 0 {
		return Droplet{}, false
	}

	return d, true
}

// Indices returns the source symbols a droplet of the given seed and degree
// combines. Degree 1 picks seed mod k; larger degrees draw distinct indices
// from a PRNG seeded by the seed.
func Indices(seed uint64, degree, k int) []int {
	if degree <= 1 {
		return []int{int(seed % uint64(k))}
	}

	if degree > k {
		degree = k
	}

	// Floyd's sampling: degree distinct values of [0, k).
	rng := rand.New(rand.NewPCG(seed, indexStream))
	chosen := make(map[int]struct{}, degree)
	out := make([]int, 0, degree)

	for j := k - degree; j < k; j++ {
		t := rng.IntN(j + 1)
		if _, ok := chosen[t]; ok {
			t = j
		}

		chosen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}

func degreeFor(seed uint64, cdf []float64) int {
	rng := rand.New(rand.NewPCG(seed, degreeStream))

	return SampleDegree(cdf, rng.Float64())
}

func mask(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}

	return 1<<(8*uint(width)) - 1
}

func putUint(dst []byte, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	copy(dst, buf[8-len(dst):])
}

func readUint(src []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(src):], src)

	return binary.BigEndian.Uint64(buf[:])
}
