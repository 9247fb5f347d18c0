package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvzzle/mintbot/internal/history"

	"golang.org/x/time/rate"
)

// Exercises the file-backed history store under concurrent load. The store
// rewrites the whole file on each change, so this shows where the record
// cap stops being cheap.

type opType int

const (
	opWrite opType = iota
	opRead
)

func main() {
	var (
		dir     = flag.String("dir", "", "working dir (default: temp)")
		dur     = flag.Duration("dur", 30*time.Second, "test duration")
		rps     = flag.Int("rps", 200, "operations per second")
		rw      = flag.Int("rw", 5, "reads per 1 write")
		workers = flag.Int("workers", 16, "concurrent workers")
		capFlag = flag.Int("cap", 100, "record cap")
		limit   = flag.Int("limit", 10, "query limit")
	)
	flag.Parse()

	workDir := *dir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "histload")
		if err != nil {
			panic(err)
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	}

	store, err := history.Open(filepath.Join(workDir, "history.json"), *capFlag)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *dur)
	defer cancel()

	lim := rate.NewLimiter(rate.Limit(*rps), *rps)

	jobs := make(chan opType, 1024)

	var (
		totalOps  uint64
		errOps    uint64
		mu        sync.Mutex
		latencies []time.Duration
	)

	started := time.Now()

	var wg sync.WaitGroup
	wg.Add(*workers)
	for i := 0; i < *workers; i++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			for op := range jobs {
				t0 := time.Now()
				err := doOp(store, op, r, *limit)
				dt := time.Since(t0)

				atomic.AddUint64(&totalOps, 1)
				if err != nil {
					atomic.AddUint64(&errOps, 1)
					continue
				}
				mu.Lock()
				latencies = append(latencies, dt)
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(jobs)

		pattern := make([]opType, 0, *rw+1)
		for i := 0; i < *rw; i++ {
			pattern = append(pattern, opRead)
		}
		pattern = append(pattern, opWrite)
		idx := 0

		for {
			if err := lim.Wait(ctx); err != nil {
				return
			}
			jobs <- pattern[idx]
			idx++
			if idx == len(pattern) {
				idx = 0
			}
		}
	}()

	wg.Wait()
	elapsed := time.Since(started)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		i := int(float64(len(latencies)-1) * p)
		return latencies[i]
	}

	fmt.Printf("ops: %d (errors: %d) in %s, %.1f op/s\n",
		totalOps, errOps, elapsed.Round(time.Millisecond), float64(totalOps)/elapsed.Seconds())
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n",
		pct(0.50), pct(0.95), pct(0.99), pct(1.0))
	fmt.Printf("records retained: %d (cap %d)\n", store.Len(), *capFlag)
}

func doOp(store *history.Store, op opType, r *rand.Rand, limit int) error {
	switch op {
	case opRead:
		_ = store.Query("", limit)
		return nil
	case opWrite:
		rec := fakeRecord(r)
		if err := store.Append(rec); err != nil {
			return err
		}
		return store.Mutate(rec.Hash, func(rr *history.Record) {
			rr.Status = history.StatusConfirmed
		})
	}
	return nil
}

func fakeRecord(r *rand.Rand) history.Record {
	return history.Record{
		Hash:        fmt.Sprintf("0x%064x", r.Int63()),
		FromAddr:    fmt.Sprintf("0x%040x", r.Int31()),
		ToAddr:      fmt.Sprintf("0x%040x", r.Int31()),
		Status:      history.StatusPending,
		Nonce:       uint64(r.Intn(1000)),
		GasPriceWei: "1000000000",
		GasLimit:    200000,
		SubmittedAt: time.Now().UTC(),
	}
}
