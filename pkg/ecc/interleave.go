package ecc

// InterleaveOrder returns, for each interleaved position, the index of the
// item it holds. Items are read with stride depth: 0, depth, 2*depth, ...,
// then 1, 1+depth, ... Depth below 2 is the identity.
func InterleaveOrder(n, depth int) []int {
	order := make([]int, 0, n)
	if depth < 2 {
		for i := 0; i < n; i++ {
			order = append(order, i)
		}

		return order
	}

	for start := 0; start < depth; start++ {
		for i := start; i < n; i += depth {
			order = append(order, i)
		}
	}

	return order
}

// Interleave reorders items with the given depth.
func Interleave[T any](items []T, depth int) []T {
	out := make([]T, len(items))
	for pos, idx := range InterleaveOrder(len(items), depth) {
		out[pos] = items[idx]
	}

	return out
}

// Deinterleave is the inverse of Interleave.
func Deinterleave[T any](items []T, depth int) []T {
	out := make([]T, len(items))
	for pos, idx := range InterleaveOrder(len(items), depth) {
		out[idx] = items[pos]
	}

	return out
}
