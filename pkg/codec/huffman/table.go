package huffman

import (
	"container/heap"
	"sort"

	"github.com/askiada/go-pepstore/pkg/failure"
)

// maxCodeLength bounds code lengths read from a header. A source of fewer than
// 2^32 bytes never needs more.
const maxCodeLength = 63

// Code is the canonical code of one byte value.
type Code struct {
	Symbol byte
	Length int
	Bits   uint64
}

// Table is a canonical prefix code. Codes are sorted by symbol.
type Table struct {
	Codes []Code
	index [256]int
}

// Lookup returns the code of symbol.
func (t *Table) Lookup(symbol byte) (Code, bool) {
	i := t.index[symbol]
	if i == 0 {
		return Code{}, false
	}

	return t.Codes[i-1], true
}

// BuildTable derives code lengths from the byte frequencies of data and
// assigns canonical codes. Ties merge the node holding the lowest symbol first.
func BuildTable(data []byte) *Table {
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}

	pq := &nodeQueue{}
	for s, f := range freq {
		if f > 0 {
			heap.Push(pq, &node{weight: f, low: byte(s), symbols: []byte{byte(s)}})
		}
	}

	lengths := make(map[byte]int, pq.Len())

	switch pq.Len() {
	case 0:
	case 1:
		lengths[(*pq)[0].low] = 1
	default:
		for pq.Len() > 1 {
			a := heap.Pop(pq).(*node)
			b := heap.Pop(pq).(*node)

			for _, s := range a.symbols {
				lengths[s]++
			}

			for _, s := range b.symbols {
				lengths[s]++
			}

			low := a.low
			if b.low < low {
				low = b.low
			}

			heap.Push(pq, &node{
				weight:  a.weight + b.weight,
				low:     low,
				symbols: append(append([]byte{}, a.symbols...), b.symbols...),
			})
		}
	}

	codes := make([]Code, 0, len(lengths))
	for s, l := range lengths {
		codes = append(codes, Code{Symbol: s, Length: l})
	}

	table, _ := newTable(codes)

	return table
}

// newTable assigns canonical codes to symbols with known lengths: shorter
// codes first, then by symbol value.
func newTable(codes []Code) (*Table, error) {
	sortByCode(codes)

	var (
		code uint64
		prev int
		// kraft is the sum of 2^(maxCodeLength-length).
		kraft uint64
	)

	for i := range codes {
		l := codes[i].Length
		if l < 1 || l > maxCodeLength {
			return nil, failure.Decodef("code length %d of symbol %d out of range", l, codes[i].Symbol)
		}

		kraft += 1 << uint(maxCodeLength-l)
		if kraft > 1<<maxCodeLength {
			return nil, failure.Decodef("code lengths violate the Kraft inequality")
		}

		if i > 0 {
			code = (code + 1) << uint(l-prev)
		}

		codes[i].Bits = code
		prev = l
	}

	sort.Slice(codes, func(i, j int) bool { return codes[i].Symbol < codes[j].Symbol })

	table := &Table{Codes: codes}
	for i, c := range codes {
		if table.index[c.Symbol] != 0 {
			return nil, failure.Decodef("symbol %d listed twice", c.Symbol)
		}

		table.index[c.Symbol] = i + 1
	}

	return table, nil
}

type node struct {
	weight  int
	low     byte
	symbols []byte
}

type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}

	return q[i].low < q[j].low
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]

	return n
}
