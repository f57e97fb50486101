// Package sample draws uniform random samples without replacement.
package sample

import "math/rand/v2"

// Of returns min(n, len(items)) distinct elements of items chosen uniformly
// at random. items is not modified. A nil rng uses the global source.
func Of[T any](rng *rand.Rand, items []T, n int) []T {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}

	// Partial Fisher-Yates: only the first n positions are settled.
	out := make([]T, n)
	for i := 0; i < n; i++ {
		j := i + intN(rng, len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = items[idx[i]]
	}
	return out
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}
