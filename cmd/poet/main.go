// Command poet runs the POET reaction-diffusion simulation and benchmark
// harness against all three DHT concurrency strategies, in the sequence
// original_source/poet_simulator.cpp uses: lock-free, then coarse-grained,
// then fine-grained, with a collective barrier between each. It takes no
// flags; process bootstrap (rank, peer addresses) comes from the
// environment so a real multi-process deployment needs no recompilation,
// matching the teacher's dlog/config-driven (not flag-driven) services.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/poetlab/dht/bench"
	"github.com/poetlab/dht/config"
	"github.com/poetlab/dht/dlog"
	"github.com/poetlab/dht/rma"
	"github.com/poetlab/dht/rma/rpcfabric"
	"github.com/poetlab/dht/sim"
	"github.com/poetlab/dht/strategy"
)

func main() {
	runID := uuid.New().String()

	logPath := os.Getenv("POET_LOG")
	verbose := os.Getenv("POET_VERBOSE") != ""
	l := dlog.New(logPath, verbose)
	l.Printf("run %s starting\n", runID)

	c := config.Default()
	if confPath := os.Getenv("POET_CONFIG"); confPath != "" {
		var err error
		c, err = config.Read(confPath)
		if err != nil {
			l.Errorf("run %s: config.Read(%s): %v\n", runID, confPath, err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	peers := peerAddrs()
	if len(peers) == 0 {
		runLocal(runID, c, l)
		return
	}
	if err := runDistributed(runID, c, l, peers); err != nil {
		l.Errorf("run %s: %v\n", runID, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// peerAddrs parses POET_PEERS, a comma-separated host:port list. An empty
// or unset POET_PEERS means single-rank local mode.
func peerAddrs() []string {
	raw := os.Getenv("POET_PEERS")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			addrs = append(addrs, p)
		}
	}
	return addrs
}

func rankFromEnv() int {
	raw := os.Getenv("POET_RANK")
	if raw == "" {
		return 0
	}
	r, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return r
}

// runLocal drives the simulation and benchmark entirely in this process,
// spawning c.Processes goroutines sharing one rma.NewLocalFabrics cluster
// — the single-binary "go run ./cmd/poet works standalone" mode.
func runLocal(runID string, c *config.Config, l *dlog.Logger) {
	n := c.GridX * c.GridY
	fabrics := rma.NewLocalFabrics(c.Processes, n, c.NumSpecies)

	done := make(chan struct{}, c.Processes)
	for rank, f := range fabrics {
		go func(rank int, f rma.Fabric) {
			defer func() { done <- struct{}{} }()
			runRank(runID, c, l, f, rank)
		}(rank, f)
	}
	for i := 0; i < c.Processes; i++ {
		<-done
	}

	if c.Processes > 0 {
		runBenchmarkSuite(runID, c, l)
	}
}

// runDistributed joins a real multi-process deployment: this process is
// exactly one rank, addressed at peers[rank] and connected to every other
// rank over rpcfabric. The benchmark and scalability sweep, which are
// defined as in-process comparisons across a fresh local cluster, run
// only from rank 0 — every other rank's job is the simulation phase.
func runDistributed(runID string, c *config.Config, l *dlog.Logger, peers []string) error {
	rank := rankFromEnv()
	n := c.GridX * c.GridY

	f, err := rpcfabric.New(rank, peers, n, c.NumSpecies)
	if err != nil {
		return fmt.Errorf("rpcfabric.New: %w", err)
	}
	defer f.Close()

	runRank(runID, c, l, f, rank)

	if rank == 0 {
		runBenchmarkSuite(runID, c, l)
	}
	return nil
}

// runRank runs the full lock-free / coarse-grained / fine-grained
// sequence over f for this rank, mirroring
// original_source/poet_simulator.cpp's main().
func runRank(runID string, c *config.Config, l *dlog.Logger, f rma.Fabric, rank int) {
	params := sim.Params{
		GridX:      c.GridX,
		GridY:      c.GridY,
		NumSpecies: c.NumSpecies,
		D:          c.DiffusionD,
		K:          c.ReactionK,
		Dt:         c.Dt,
	}

	runStrategy(runID, c, l, f, rank, "lock-free", func() strategy.Strategy {
		return strategy.NewLockFree(f, c.NumSpecies)
	}, params)
	f.Barrier()

	runStrategy(runID, c, l, f, rank, "coarse-grained", func() strategy.Strategy {
		return strategy.NewCoarse(f, c.NumSpecies)
	}, params)
	f.Barrier()

	runStrategy(runID, c, l, f, rank, "fine-grained", func() strategy.Strategy {
		return strategy.NewFine(f, c.NumSpecies)
	}, params)
}

func runStrategy(runID string, c *config.Config, l *dlog.Logger, f rma.Fabric, rank int, label string, newStrategy func() strategy.Strategy, params sim.Params) {
	s := newStrategy()
	defer s.Close()

	driver := sim.NewDriver(s, params, rank, f.Size())

	if rank == 0 {
		l.Printf("run %s: testing %s...\n", runID, label)
	}
	start := time.Now()
	driver.Run(c.Steps)
	elapsed := time.Since(start)

	if rank == 0 {
		l.Printf("run %s: %s simulation completed in %s\n", runID, s.Name(), elapsed)
	}
}

// runBenchmarkSuite runs the three spec-mandated microbenchmarks plus the
// scalability sweep against fresh in-process clusters, independent of
// whichever fabric the simulation phase used, and writes
// scalability_results.csv.
func runBenchmarkSuite(runID string, c *config.Config, l *dlog.Logger) {
	n := c.GridX * c.GridY

	workloads := []struct {
		name     string
		workload bench.Workload
	}{
		{"read-only", bench.ReadOnly},
		{"write-only", bench.WriteOnly},
		{"mixed", bench.Mixed},
	}

	for _, wl := range workloads {
		for _, strat := range []struct {
			name string
			new  func(rma.Fabric, int) strategy.Strategy
		}{
			{"lock-free", func(f rma.Fabric, s int) strategy.Strategy { return strategy.NewLockFree(f, s) }},
			{"coarse-grained", func(f rma.Fabric, s int) strategy.Strategy { return strategy.NewCoarse(f, s) }},
			{"fine-grained", func(f rma.Fabric, s int) strategy.Strategy { return strategy.NewFine(f, s) }},
		} {
			f := rma.NewLocalFabrics(1, n, c.NumSpecies)[0]
			s := strat.new(f, c.NumSpecies)
			result := bench.Run(s, bench.Params{
				Workload:             wl.workload,
				OperationsPerProcess: c.OperationsPerProcess,
				N:                    n,
				NumSpecies:           c.NumSpecies,
				ReadRatio:            c.ReadRatio,
				Processes:            1,
			}, 1)
			result.Print(l)
			s.Close()
			l.Printf("run %s: %s/%s: %.2f ops/sec\n", runID, wl.name, strat.name, result.Throughput)
		}
	}

	row := bench.RunScalabilitySweep(c.Processes, n, c.NumSpecies, c.OperationsPerProcess, c.ScalabilityReadRatio)
	if err := bench.WriteCSV(c.ResultsPath, []bench.ScalabilityRow{row}); err != nil {
		l.Errorf("run %s: WriteCSV(%s): %v\n", runID, c.ResultsPath, err)
		return
	}
	l.Printf("run %s: wrote %s (speedup=%.4f)\n", runID, c.ResultsPath, row.Speedup())
}
