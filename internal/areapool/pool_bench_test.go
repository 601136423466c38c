package areapool

import (
	"fmt"
	"testing"
)

// BenchmarkPoolAdd measures insertion-plus-eviction cost at a range of
// per-area capacities, mirroring the teacher's size-sweep benchmarking
// convention (internal/protocol/packet_bench_test.go).
func BenchmarkPoolAdd(b *testing.B) {
	capacities := []int{10, 100, 1000}

	for _, capacity := range capacities {
		b.Run(fmt.Sprintf("capacity=%d", capacity), func(b *testing.B) {
			p := New[int, int, string](capacity)
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				v := "entry"
				p.Add(i%4, i, &v)
			}
		})
	}
}

// BenchmarkPoolRandomSet measures sampling cost from a saturated area.
func BenchmarkPoolRandomSet(b *testing.B) {
	p := New[int, int, string](1000)
	for i := 0; i < 1000; i++ {
		v := "entry"
		p.Add(0, i, &v)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for range b.N {
		p.RandomSet(0, 20)
	}
}
