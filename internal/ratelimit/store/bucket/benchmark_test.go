package bucket

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// BenchmarkAllowN measures single-threaded throughput
func BenchmarkAllowN(b *testing.B) {
	store := New()
	ctx := context.Background()

	for b.Loop() {
		_, _ = store.AllowN(ctx, "attendee:bench", 1, 1000, time.Minute)
	}
}

// BenchmarkAllowN_Parallel measures concurrent throughput on one hot key
func BenchmarkAllowN_Parallel(b *testing.B) {
	store := New()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.AllowN(ctx, "attendee:bench", 1, 1000, time.Minute)
		}
	})
}

// BenchmarkAllowN_HighCardinality_Parallel spreads load over many attendees
func BenchmarkAllowN_HighCardinality_Parallel(b *testing.B) {
	store := New()
	ctx := context.Background()
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			key := fmt.Sprintf("attendee:a%d", i%50000)
			_, _ = store.AllowN(ctx, key, 1, 30, time.Minute)
		}
	})
}

// BenchmarkTokenBucket_Parallel is the x/time/rate variant of the hot key case
func BenchmarkTokenBucket_Parallel(b *testing.B) {
	store := NewTokenBucket()
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = store.AllowN(ctx, "attendee:bench", 1, 1000, time.Minute)
		}
	})
}
