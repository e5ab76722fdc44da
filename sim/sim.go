// Package sim implements the reaction-diffusion access pattern (C6)
// every strategy is benchmarked against: a toroidal 2-D stencil over the
// DHT keyspace, seeded with a deterministic concentration gradient and
// advanced for a fixed number of steps, grounded on
// original_source/poet_simulator.cpp.
package sim

import (
	"github.com/poetlab/dht/bucket"
	"github.com/poetlab/dht/strategy"
)

// Params describes the grid and the reaction-diffusion constants. S is
// the number of species per cell; species 0 and 1 are consumed as A and
// B of the single second-order reaction A+B->C, which is written back
// into species 2 when S >= 3.
type Params struct {
	GridX, GridY int
	NumSpecies   int
	D            float64 // diffusion coefficient
	K            float64 // reaction rate constant
	Dt           float64 // timestep
}

// N returns the total number of cells in the grid.
func (p Params) N() int { return p.GridX * p.GridY }

// Driver advances one rank's share of the grid through the
// reaction-diffusion stepper. Driver owns a contiguous block of global
// keys assigned at start-up for iteration purposes only — this block is
// unrelated to the DHT's own k mod P ownership, which may route any of
// these keys to any rank's window.
type Driver struct {
	s      strategy.Strategy
	params Params
	start  int // first global key this rank iterates, inclusive
	end    int // one past the last global key this rank iterates
}

// NewDriver partitions params.N() keys into size contiguous blocks and
// returns the driver for rank's block.
func NewDriver(s strategy.Strategy, params Params, rank, size int) *Driver {
	n := params.N()
	perRank := ceilDiv(n, size)
	start := rank * perRank
	if start > n {
		start = n
	}
	end := start + perRank
	if end > n {
		end = n
	}
	return &Driver{s: s, params: params, start: start, end: end}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// coord converts a global key into (x, y) in the toroidal grid_x x
// grid_y layout: x = key mod grid_x, y = key div grid_x.
func (d *Driver) coord(key int) (x, y int) {
	return key % d.params.GridX, key / d.params.GridX
}

// key converts (x, y) back into a global key, wrapping both axes
// toroidally.
func (d *Driver) key(x, y int) int {
	gx, gy := d.params.GridX, d.params.GridY
	x = ((x % gx) + gx) % gx
	y = ((y % gy) + gy) % gy
	return y*gx + x
}

// neighbors returns the four periodic neighbor keys of key, in
// left/right/up/down order.
func (d *Driver) neighbors(key int) (left, right, up, down int) {
	x, y := d.coord(key)
	return d.key(x-1, y), d.key(x+1, y), d.key(x, y-1), d.key(x, y+1)
}

// Seed writes a deterministic concentration gradient over this rank's
// block so that runs are reproducible across strategies: species i at
// cell (x, y) starts at (x+y+i) / (grid_x+grid_y), a smooth ramp across
// the grid with a per-species phase offset.
func (d *Driver) Seed() {
	gx, gy := d.params.GridX, d.params.GridY
	denom := float64(gx + gy)
	for key := d.start; key < d.end; key++ {
		x, y := d.coord(key)
		cell := bucket.NewGridCell(d.params.NumSpecies)
		for i := range cell.Concentrations {
			cell.Concentrations[i] = float64(x+y+i) / denom
		}
		d.s.Put(key, cell)
	}
}

// Step reads every cell in this rank's block plus its four periodic
// neighbors, applies one discrete-Laplacian diffusion step and one
// second-order reaction step per species, and writes the result back.
// It does not call Sync; callers step every rank in lockstep and Sync
// between steps themselves (see Run).
func (d *Driver) Step() {
	for key := d.start; key < d.end; key++ {
		self := d.s.Get(key)
		left, right, up, down := d.neighbors(key)
		cl := d.s.Get(left)
		cr := d.s.Get(right)
		cu := d.s.Get(up)
		cd := d.s.Get(down)

		next := bucket.NewGridCell(d.params.NumSpecies)
		for i := range next.Concentrations {
			laplacian := cl.Concentrations[i] + cr.Concentrations[i] +
				cu.Concentrations[i] + cd.Concentrations[i] - 4*self.Concentrations[i]
			next.Concentrations[i] = self.Concentrations[i] + d.params.D*laplacian*d.params.Dt
		}

		if len(next.Concentrations) >= 3 {
			delta := d.params.K * next.Concentrations[0] * next.Concentrations[1] * d.params.Dt
			next.Concentrations[0] -= delta
			next.Concentrations[1] -= delta
			next.Concentrations[2] += delta
		}

		d.s.Put(key, next)
	}
}

// Run seeds the grid, then advances it for steps iterations, calling
// Sync after every step (including Seed) so every rank observes a
// consistent grid before the next step reads neighbor cells.
func (d *Driver) Run(steps int) {
	d.Seed()
	d.s.Sync()
	for i := 0; i < steps; i++ {
		d.Step()
		d.s.Sync()
	}
}
