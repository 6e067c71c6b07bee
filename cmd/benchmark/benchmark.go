package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	query "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/eviction"
	"github.com/krisalay/query-cache/types"
)

// ================= BENCHMARK =================

func main() {
	ctx := context.Background()

	const (
		shards      = 8
		capacity    = 200000
		preloadKeys = 100000
		goroutines  = 200
		opsPerG     = 5000
		invalidateN = 1000
	)

	fmt.Println("\n================ QUERY CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", shards)
	fmt.Println("Capacity     :", capacity)
	fmt.Println("Preload Keys :", preloadKeys)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("---------------------------------")

	var runs atomic.Int64
	capability := types.CapabilityFunc[int, int](func(_ context.Context, key int) (int, error) {
		runs.Inc()
		return key * 2, nil
	})

	store, err := query.NewStore[int, int](capability,
		query.WithShards(shards),
		query.WithMaxEntries(capacity, eviction.LRU),
	)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	// ---------------- Preload ----------------
	fmt.Println("Preloading cache...")
	for i := 0; i < preloadKeys; i++ {
		if _, err := store.Get(ctx, i); err != nil {
			panic(err)
		}
	}
	fmt.Println("Preload complete.")

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				key := (id*opsPerG + j) % preloadKeys
				if j%invalidateN == 0 {
					store.InvalidateExact(key)
				}
				if _, err := store.Get(ctx, key); err != nil {
					panic(err)
				}
			}
		}(i)
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Capability Runs  : %d\n", runs.Load())
	fmt.Printf("Entries          : %d\n", store.Len())
	fmt.Println("=========================================")
}
