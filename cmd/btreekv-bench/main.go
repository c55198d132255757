// Command btreekv-bench drives a tree through a load phase and a mixed
// workload, sampling latency and memory the same way the teacher's
// main.go/benchmark.go do (runtime.MemStats snapshots, a CSV of
// per-phase results), adapted from sweeping three index kinds over a
// degree parameter to sweeping one tree over a page-size parameter.
package main

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/kvindex/btreekv/btree"
	"github.com/kvindex/btreekv/kvcodec"
	"github.com/kvindex/btreekv/params"
)

type memStats struct {
	allocMB     uint64
	heapObjects uint64
}

func sampleMem() memStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memStats{allocMB: m.Alloc / 1024 / 1024, heapObjects: m.HeapObjects}
}

func record(w *csv.Writer, pageSize int, op string, latencyNs int64, mem memStats) {
	w.Write([]string{
		strconv.Itoa(pageSize),
		op,
		strconv.FormatInt(latencyNs, 10),
		strconv.FormatUint(mem.allocMB, 10),
		strconv.FormatUint(mem.heapObjects, 10),
	})
}

func main() {
	outPath := "btreekv_bench_results.csv"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create output:", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"PageSize", "Operation", "LatencyNs", "AllocMB", "HeapObjects"})

	const n = 200_000
	pageSizes := []int{4096, 16384, 65536}

	for _, pageSize := range pageSizes {
		fmt.Printf("running btreekv-bench (page_sz=%d, n=%d)\n", pageSize, n)
		if err := runSuite(w, pageSize, n); err != nil {
			fmt.Fprintln(os.Stderr, "suite failed:", err)
			os.Exit(1)
		}
	}

	w.Flush()
	fmt.Println("done:", outPath)
}

func runSuite(w *csv.Writer, pageSize, n int) error {
	dir, err := os.MkdirTemp("", "btreekv-bench-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	codec := kvcodec.NewInt64FixedBytesCodec(8)
	p, err := params.New(pageSize, codec.KeySize(), codec.ValueSize())
	if err != nil {
		return err
	}

	t, err := btree.Open(filepath.Join(dir, "tree"), p, codec, 0)
	if err != nil {
		return err
	}
	defer t.Close()

	value, _ := codec.EncodeValue([]byte("v"))

	start := time.Now()
	for k := 0; k < n; k++ {
		if err := t.Add(kvcodec.Int64Key(k), value); err != nil {
			return err
		}
	}
	if err := t.Flush(); err != nil {
		return err
	}
	record(w, pageSize, "load", time.Since(start).Nanoseconds()/int64(n), sampleMem())

	rng := rand.New(rand.NewSource(1))
	start = time.Now()
	reads := n / 2
	for i := 0; i < reads; i++ {
		if _, err := t.Find(kvcodec.Int64Key(rng.Intn(n))); err != nil {
			return err
		}
	}
	record(w, pageSize, "point_read", time.Since(start).Nanoseconds()/int64(reads), sampleMem())

	start = time.Now()
	writes := n / 4
	for i := 0; i < writes; i++ {
		if err := t.Add(kvcodec.Int64Key(n+i), value); err != nil {
			return err
		}
	}
	if err := t.Flush(); err != nil {
		return err
	}
	record(w, pageSize, "point_write", time.Since(start).Nanoseconds()/int64(writes), sampleMem())

	start = time.Now()
	scanned := 0
	if err := t.Iter(func(kvcodec.Key, kvcodec.Value) error {
		scanned++
		return nil
	}); err != nil {
		return err
	}
	record(w, pageSize, "full_scan", time.Since(start).Nanoseconds()/int64(scanned), sampleMem())

	return nil
}
