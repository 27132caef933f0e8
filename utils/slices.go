package utils

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// GetSortedKeys returns the keys of m in increasing order.
func GetSortedKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {

	keys = make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})

	return
}

// Complement returns, in increasing order, the integers of [0, n) that are not keys of m.
func Complement[V any](m map[int]V, n int) (out []int) {
	out = make([]int, 0, n)
	for i := 0; i < n; i++ {
		if _, ok := m[i]; !ok {
			out = append(out, i)
		}
	}
	return
}
