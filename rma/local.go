package rma

import "fmt"

// cluster is the shared state behind a set of LocalFabric views: one
// Window per rank plus a barrier sized for the whole group. Because every
// rank's window genuinely lives in this process's address space, Get/Put/
// CompareAndSwap/AtomicReplace are applied synchronously and Flush is a
// no-op — there is no outstanding asynchronous operation to wait out. This
// is exactly the "simulate one-sided RMA with request/response messages
// plus server-side application of the operation semantics" fallback
// spec.md §9 describes for non-RMA implementations, specialized to the
// case where the "server" and every "client" share one process.
type cluster struct {
	windows []*Window
	part    Partition
	bar     *barrier
}

// NewLocalCluster allocates p windows sized for n expected entries and a
// barrier for p participants.
func NewLocalCluster(p, n, numSpecies int) *cluster {
	part := NewPartition(p, n)
	c := &cluster{
		windows: make([]*Window, p),
		part:    part,
		bar:     newBarrier(p),
	}
	for i := range c.windows {
		c.windows[i] = NewWindow(part.LocalCapacity, numSpecies)
	}
	return c
}

// Fabric returns the Fabric view for the given rank.
func (c *cluster) Fabric(rank int) Fabric {
	if rank < 0 || rank >= len(c.windows) {
		panic(fmt.Sprintf("rma: Fabric: rank %d out of range [0,%d)", rank, len(c.windows)))
	}
	return &LocalFabric{cluster: c, rank: rank}
}

// NewLocalFabrics is a convenience wrapper returning one Fabric per rank
// for a fresh cluster of p ranks sized for n expected entries.
func NewLocalFabrics(p, n, numSpecies int) []Fabric {
	c := NewLocalCluster(p, n, numSpecies)
	fabrics := make([]Fabric, p)
	for i := 0; i < p; i++ {
		fabrics[i] = c.Fabric(i)
	}
	return fabrics
}

// LocalFabric is the in-process Fabric implementation: a thin, rank-scoped
// view over a shared cluster.
type LocalFabric struct {
	cluster *cluster
	rank    int
}

func (f *LocalFabric) Rank() int            { return f.rank }
func (f *LocalFabric) Size() int            { return len(f.cluster.windows) }
func (f *LocalFabric) Partition() Partition { return f.cluster.part }

func (f *LocalFabric) Barrier() { f.cluster.bar.wait() }

func (f *LocalFabric) window(rank int) *Window {
	return f.cluster.windows[rank]
}

func (f *LocalFabric) Get(rank, byteOffset, n int) []byte {
	return f.window(rank).Get(byteOffset, n)
}

func (f *LocalFabric) Put(rank, byteOffset int, data []byte) {
	f.window(rank).Put(byteOffset, data)
}

func (f *LocalFabric) CompareAndSwap(rank, byteOffset int, expect, desired int32) int32 {
	return f.window(rank).CompareAndSwap(byteOffset, expect, desired)
}

func (f *LocalFabric) AtomicReplace(rank, byteOffset int, value int32) {
	f.window(rank).AtomicReplace(byteOffset, value)
}

// Flush/FlushAll are no-ops here: every operation above already completed,
// locally and remotely, before it returned.
func (f *LocalFabric) Flush(rank int) {}
func (f *LocalFabric) FlushAll()      {}

func (f *LocalFabric) LockShared(rank int)      { f.window(rank).LockShared() }
func (f *LocalFabric) UnlockShared(rank int)    { f.window(rank).UnlockShared() }
func (f *LocalFabric) LockExclusive(rank int)   { f.window(rank).LockExclusive() }
func (f *LocalFabric) UnlockExclusive(rank int) { f.window(rank).UnlockExclusive() }

// LockAll/UnlockAll mark every window's epoch flag. The flag isn't needed
// for correctness here (atomics work regardless) and nothing reads it; it
// only records the open/close calls that fine.go and lockfree.go make,
// matching the constructor/destructor-scoped MPI_Win_lock_all/unlock_all shape in
// original_source/fine_grained_hash_table.hpp and
// original_source/lock_free_hash_table.hpp.
func (f *LocalFabric) LockAll() {
	for _, w := range f.cluster.windows {
		w.SetEpochOpen(true)
	}
}

func (f *LocalFabric) UnlockAll() {
	for _, w := range f.cluster.windows {
		w.SetEpochOpen(false)
	}
}

func (f *LocalFabric) ContentionDropped() uint64 {
	return f.window(f.rank).ContentionDropped()
}

func (f *LocalFabric) RecordDropped(rank int) {
	f.window(rank).RecordDropped()
}

func (f *LocalFabric) Close() error { return nil }
