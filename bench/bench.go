// Package bench implements the three microbenchmarks (C7) that drive
// each DHT strategy: read-only, write-only, and mixed-ratio workloads,
// plus the scalability sweep that compares all three strategies at a
// fixed process count and writes scalability_results.csv. Throughput and
// percentile reporting follow client/hybrid.go's HybridMetrics.Print
// shape.
package bench

import (
	"encoding/csv"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/poetlab/dht/bucket"
	"github.com/poetlab/dht/rma"
	"github.com/poetlab/dht/strategy"
)

// Workload selects which microbenchmark Run executes.
type Workload int

const (
	ReadOnly Workload = iota
	WriteOnly
	Mixed
)

// Params configures a single microbenchmark run against one strategy.
type Params struct {
	Workload             Workload
	OperationsPerProcess int
	N                    int // keyspace size, keys drawn from [0, N)
	NumSpecies           int
	ReadRatio            float64      // Bernoulli probability of a Get, used only by Mixed
	Processes            int          // P, used to compute aggregate throughput
	Keys                 KeyGenerator // nil selects UniformKeyGenerator, per spec.md §4.7
}

// Result is one strategy's outcome for a single microbenchmark run.
type Result struct {
	StrategyName string
	Operations   int // this rank's operation count (== OperationsPerProcess)
	Duration     time.Duration
	Throughput   float64   // (OperationsPerProcess * Processes) / Duration.Seconds()
	Latencies    []float64 // per-operation latency in milliseconds, one entry per op
}

// Run executes p.OperationsPerProcess operations of p.Workload against s
// using a private random source (seeded deterministically by seed so
// repeated benchmark runs are reproducible), measuring wall time from
// the first operation to the post-loop Sync's barrier completion. Each
// individual Get/Put is also timed so Result.Print can report latency
// percentiles, not just the aggregate throughput.
func Run(s strategy.Strategy, p Params, seed int64) Result {
	rng := rand.New(rand.NewSource(seed))
	keys := p.Keys
	if keys == nil {
		keys = NewUniformKeyGenerator(p.N, seed)
	}

	latencies := make([]float64, 0, p.OperationsPerProcess)
	start := time.Now()
	for i := 0; i < p.OperationsPerProcess; i++ {
		key := keys.NextKey()
		opStart := time.Now()
		switch p.Workload {
		case ReadOnly:
			s.Get(key)
		case WriteOnly:
			s.Put(key, randomizedPayload(rng, p.NumSpecies))
		case Mixed:
			if rng.Float64() < p.ReadRatio {
				s.Get(key)
			} else {
				s.Put(key, randomizedPayload(rng, p.NumSpecies))
			}
		}
		latencies = append(latencies, float64(time.Since(opStart).Nanoseconds())/1e6)
	}
	s.Sync()
	duration := time.Since(start)

	ops := p.OperationsPerProcess
	throughput := float64(ops*p.Processes) / duration.Seconds()

	return Result{
		StrategyName: s.Name(),
		Operations:   ops,
		Duration:     duration,
		Throughput:   throughput,
		Latencies:    latencies,
	}
}

func randomizedPayload(rng *rand.Rand, numSpecies int) bucket.GridCell {
	c := bucket.NewGridCell(numSpecies)
	for i := range c.Concentrations {
		c.Concentrations[i] = rng.Float64()
	}
	return c
}

// Printer is the logging sink Print writes to, matching
// client/hybrid.go's Printer interface.
type Printer interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

// Print reports a single Result in the same Avg/Median/P99/P99.9 style
// client/hybrid.go's HybridMetrics.Print uses, computed over every
// operation's own latency rather than a single aggregate duration.
func (r Result) Print(p Printer) {
	p.Println("\n=== Benchmark Result ===")
	p.Printf("Strategy: %s\n", r.StrategyName)
	p.Printf("Operations (this rank): %d\n", r.Operations)
	p.Printf("Duration: %.3fs\n", r.Duration.Seconds())
	p.Printf("Throughput: %.2f ops/sec\n", r.Throughput)
	if len(r.Latencies) > 0 {
		avg, median, p99, p999 := computePercentiles(r.Latencies)
		p.Printf("Latency (ms): Avg: %.3f | Median: %.3f | P99: %.3f | P99.9: %.3f\n", avg, median, p99, p999)
	}
	p.Println("========================")
}

// computePercentiles computes avg, median, P99, and P99.9 from a slice of
// latencies, matching client/hybrid.go's computePercentiles.
func computePercentiles(latencies []float64) (avg, median, p99, p999 float64) {
	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	avg = sum / float64(n)
	median = sorted[n/2]
	p99 = sorted[int(float64(n)*0.99)]
	p999Idx := int(float64(n) * 0.999)
	if p999Idx >= n {
		p999Idx = n - 1
	}
	p999 = sorted[p999Idx]

	return avg, median, p99, p999
}

// ScalabilityRow is one row of scalability_results.csv.
type ScalabilityRow struct {
	Processes   int
	LockFreeOps float64
	CoarseOps   float64
	FineOps     float64
}

// Speedup returns lf_ops / coarse_ops, the metric scalability_results.csv
// reports alongside the raw throughputs.
func (r ScalabilityRow) Speedup() float64 {
	if r.CoarseOps == 0 {
		return 0
	}
	return r.LockFreeOps / r.CoarseOps
}

// WriteCSV writes rows to path with the header
// processes,lock_free_ops,coarse_grained_ops,fine_grained_ops,speedup,
// overwriting any existing file. Callers must only invoke this on rank
// 0: the CSV is written once per run, not once per process.
func WriteCSV(path string, rows []ScalabilityRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"processes", "lock_free_ops", "coarse_grained_ops", "fine_grained_ops", "speedup"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.Processes),
			strconv.FormatFloat(row.LockFreeOps, 'f', 2, 64),
			strconv.FormatFloat(row.CoarseOps, 'f', 2, 64),
			strconv.FormatFloat(row.FineOps, 'f', 2, 64),
			strconv.FormatFloat(row.Speedup(), 'f', 4, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

// RunScalabilitySweep runs the mixed workload (spec's default scalability
// read ratio, typically 0.7) against all three strategies at the given
// process count p, each on a fresh in-process cluster, and returns the
// single ScalabilityRow comparing them. Every rank within a strategy's
// cluster runs concurrently and scales its own operation count by
// Processes over its own duration; the row uses rank 0's Result.
func RunScalabilitySweep(p, n, numSpecies, opsPerProcess int, readRatio float64) ScalabilityRow {
	lfNew := func(f rma.Fabric, numSpecies int) strategy.Strategy { return strategy.NewLockFree(f, numSpecies) }
	coarseNew := func(f rma.Fabric, numSpecies int) strategy.Strategy { return strategy.NewCoarse(f, numSpecies) }
	fineNew := func(f rma.Fabric, numSpecies int) strategy.Strategy { return strategy.NewFine(f, numSpecies) }

	lf := runClusterMixed(rma.NewLocalFabrics(p, n, numSpecies), lfNew, numSpecies, n, opsPerProcess, readRatio, p)
	coarse := runClusterMixed(rma.NewLocalFabrics(p, n, numSpecies), coarseNew, numSpecies, n, opsPerProcess, readRatio, p)
	fine := runClusterMixed(rma.NewLocalFabrics(p, n, numSpecies), fineNew, numSpecies, n, opsPerProcess, readRatio, p)

	return ScalabilityRow{
		Processes:   p,
		LockFreeOps: lf.Throughput,
		CoarseOps:   coarse.Throughput,
		FineOps:     fine.Throughput,
	}
}

func runClusterMixed(fabrics []rma.Fabric, newStrategy func(rma.Fabric, int) strategy.Strategy, numSpecies, n, opsPerProcess int, readRatio float64, processes int) Result {
	results := make([]Result, len(fabrics))
	var wg sync.WaitGroup
	for rank, f := range fabrics {
		wg.Add(1)
		go func(rank int, f rma.Fabric) {
			defer wg.Done()
			s := newStrategy(f, numSpecies)
			defer s.Close()
			params := Params{
				Workload:             Mixed,
				OperationsPerProcess: opsPerProcess,
				N:                    n,
				NumSpecies:           numSpecies,
				ReadRatio:            readRatio,
				Processes:            processes,
			}
			results[rank] = Run(s, params, int64(rank+1))
		}(rank, f)
	}
	wg.Wait()
	return results[0]
}
