// Command loadtest generates synthetic Lookup traffic against a
// running data-server, paced by the same RateLimiter the server uses
// for admission control, from a configurable number of concurrent
// workers -- the Go analogue of the original SNS-publishing load
// generator, aimed at a gRPC endpoint instead of a message queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adtech/kvserving/internal/rpc"
	"github.com/adtech/kvserving/internal/ratelimiter"
)

func main() {
	addr := flag.String("addr", "localhost:50052", "address of the data server to load")
	numWorkers := flag.Int("workers", 2, "number of concurrent client goroutines")
	requestsPerSecond := flag.Float64("rps", 15, "target total requests per second across all workers")
	duration := flag.Duration("duration", 30*time.Second, "how long to run the load test")
	keysPerRequest := flag.Int("keys", 10, "number of keys per lookup request")
	flag.Parse()

	client, err := rpc.Dial(*addr)
	if err != nil {
		log.Fatalf("dialing %s: %v", *addr, err)
	}
	defer client.Close()

	rl := ratelimiter.New(ratelimiter.Config{
		Capacity: *requestsPerSecond,
		FillRate: *requestsPerSecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var sent, failed atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < *numWorkers; w++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			runWorker(ctx, client, rl, workerIdx, *keysPerRequest, &sent, &failed)
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start).Seconds()
	total := sent.Load()
	fmt.Printf("sent=%d failed=%d elapsed=%.1fs rate=%.1f/s\n",
		total, failed.Load(), elapsed, float64(total)/elapsed)
}

func runWorker(ctx context.Context, client *rpc.Client, rl *ratelimiter.RateLimiter, workerIdx, keysPerRequest int, sent, failed *atomic.Int64) {
	requestIdx := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rl.Acquire(1)

		keys := make([]string, keysPerRequest)
		for i := range keys {
			keys[i] = fmt.Sprintf("loadtest-%d-%d-%d", workerIdx, requestIdx, i)
		}

		reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := client.GetValues(reqCtx, keys, 0)
		cancel()

		if err != nil {
			failed.Add(1)
		} else {
			sent.Add(1)
		}
		requestIdx++
	}
}
