// ABOUTME: Multi-threaded mutator/collector benchmark harness
// ABOUTME: Mirrors dynamic_rc_benchmark.cpp's benchmark_multithread_with_gc workload shape

// Command gcbench drives the collector under a fixed mutator workload: a
// configurable number of threads each run a configurable number of
// iterations, alternately allocating a fresh reference cycle and rewiring
// a shared slot array of cyclic roots, while one goroutine repeatedly
// calls Collect. It reports the live-object count at the end of the run
// when validation is enabled.
package main

import (
	"flag"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bea4dev/concurrent-partial-mark-and-sweep/ccms"
	"github.com/bea4dev/concurrent-partial-mark-and-sweep/object"
)

func main() {
	threads := flag.Int("threads", 8, "number of concurrent mutator goroutines")
	iterations := flag.Int("iterations", 100000, "iterations per mutator goroutine")
	fieldLength := flag.Int("field-length", 1, "field count reported in the start log; every allocated object has one field regardless")
	sharedSlots := flag.Int("shared-slots", 10, "size of the shared cyclic-root array mutators rewire")
	cycleLength := flag.Int("cycle-length", 3, "number of nodes in each freshly allocated cycle")
	collectInterval := flag.Duration("collect-interval", time.Millisecond, "pause between collector passes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	logger.Info("starting benchmark",
		"threads", *threads,
		"iterations", *iterations,
		"field_length", *fieldLength,
		"shared_slots", *sharedSlots,
		"cycle_length", *cycleLength,
	)

	heap := ccms.NewHeap(ccms.WithValidation())

	shared := make([]*object.Object, *sharedSlots)
	var sharedLock object.SpinLock
	for i := range shared {
		shared[i] = makeCycle(heap, *cycleLength)
	}

	stop := make(chan struct{})
	var collectorPasses int64
	var collectorWG sync.WaitGroup
	collectorWG.Add(1)
	go func() {
		defer collectorWG.Done()
		ticker := time.NewTicker(*collectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				heap.Collect()
				atomic.AddInt64(&collectorPasses, 1)
			}
		}
	}()

	start := time.Now()
	var mutatorWG sync.WaitGroup
	for t := 0; t < *threads; t++ {
		mutatorWG.Add(1)
		go func(seed int) {
			defer mutatorWG.Done()
			runMutator(heap, shared, &sharedLock, seed, *iterations, *cycleLength)
		}(t)
	}
	mutatorWG.Wait()
	elapsed := time.Since(start)

	close(stop)
	collectorWG.Wait()

	sharedLock.Lock()
	for _, obj := range shared {
		heap.Dec(obj)
	}
	sharedLock.Unlock()

	for i := 0; i < 10; i++ {
		heap.Collect()
	}

	logger.Info("benchmark complete",
		"elapsed", elapsed,
		"collector_passes", atomic.LoadInt64(&collectorPasses),
		"live_objects", heap.LiveObjects(),
	)
}

// runMutator alternates between creating a fresh cycle and rewiring a slot
// pulled from the shared array, choosing by the parity of seed+i where the
// original harness branches on the clock.
func runMutator(heap *ccms.Heap, shared []*object.Object, sharedLock *object.SpinLock, seed, iterations, cycleLength int) {
	for i := 0; i < iterations; i++ {
		if (seed+i)%2 == 0 {
			fresh := makeCycle(heap, cycleLength)
			heap.Dec(fresh)
			continue
		}

		slot := (seed + i) % len(shared)
		replacement := makeCycle(heap, cycleLength)
		sharedLock.Lock()
		old := shared[slot]
		shared[slot] = replacement
		sharedLock.Unlock()
		if old != nil {
			heap.Dec(old)
		}
	}
}

// makeCycle allocates a ring of cycleLength cyclic-typed, shared objects
// and returns the head with a single outstanding (caller-owned) reference.
// Each node starts at refcount 1 from its own Alloc; StoreField's
// increment-before-decrement protocol bumps every node[i+1] to 2 as the
// ring is wired, so every node but the head must drop its own allocation
// handle before returning — otherwise that phantom reference makes every
// node in the ring permanently reachable from outside the cycle as far as
// the scan can tell, and it is never collected.
func makeCycle(heap *ccms.Heap, cycleLength int) *object.Object {
	nodes := make([]*object.Object, cycleLength)
	for i := range nodes {
		obj, err := heap.Alloc(1)
		if err != nil {
			panic(err) // gcbench sets no budget; a failure here is a bug
		}
		heap.MarkAsCyclicType(obj)
		heap.PromoteToShared(obj)
		nodes[i] = obj
	}
	for i, n := range nodes {
		next := nodes[(i+1)%cycleLength]
		heap.StoreField(n, 0, next)
	}
	for _, n := range nodes[1:] {
		heap.Dec(n)
	}
	return nodes[0]
}
