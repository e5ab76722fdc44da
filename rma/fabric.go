// Package rma models the process-bootstrap / RMA primitive contract that
// spec.md §6 leaves to an external collaborator: rank, size, a collective
// barrier, and one-sided get/put/atomic operations against byte-addressable
// windows. The communicator and its windows are explicitly-passed handles
// (a Fabric value), never ambient singletons, per spec.md §9.
package rma

// Fabric is implemented by every process-bootstrap transport: LocalFabric
// (in-process, used by the benchmark harness, the simulation driver, and
// every property test) and rpcfabric.Fabric (a real net/rpc transport for
// genuine multi-process deployment). Both satisfy exactly the same
// ordering and flush discipline spec.md §5 describes.
type Fabric interface {
	// Rank returns this process's rank in [0, Size()).
	Rank() int
	// Size returns the number of peer processes, P.
	Size() int
	// Partition returns the owner/slot mapping shared by every rank.
	Partition() Partition

	// Barrier blocks until every rank has called Barrier.
	Barrier()

	// Get fetches n bytes at byteOffset from rank's window.
	Get(rank, byteOffset, n int) []byte
	// Put writes data (always a whole bucket) to rank's window at
	// byteOffset.
	Put(rank, byteOffset int, data []byte)
	// CompareAndSwap performs an atomic CAS on the int32 word at
	// byteOffset in rank's window, returning the value observed
	// immediately before the attempt.
	CompareAndSwap(rank, byteOffset int, expect, desired int32) int32
	// AtomicReplace performs an atomically-ordered unconditional store
	// to the int32 word at byteOffset in rank's window.
	AtomicReplace(rank, byteOffset int, value int32)

	// Flush forces completion of outstanding operations against rank.
	Flush(rank int)
	// FlushAll forces completion of outstanding operations against
	// every rank.
	FlushAll()

	// LockShared/LockExclusive/UnlockShared/UnlockExclusive implement
	// the coarse-grained strategy's per-operation whole-window lock.
	LockShared(rank int)
	UnlockShared(rank int)
	LockExclusive(rank int)
	UnlockExclusive(rank int)

	// LockAll/UnlockAll open and close the persistent passive-target
	// epoch the fine-grained and lock-free strategies rely on so
	// individual operations can issue atomics without per-call lock
	// acquisition cost.
	LockAll()
	UnlockAll()

	// ContentionDropped reports this rank's fine-grained write-drop
	// count, for diagnostics only.
	ContentionDropped() uint64
	// RecordDropped increments rank's contention-dropped counter. Called
	// by the fine-grained strategy when it abandons a write after
	// MAX_SPIN attempts; never consulted by correctness logic.
	RecordDropped(rank int)

	// Close releases any resources the transport holds (network
	// listeners, connections). Collective: every rank should call it.
	Close() error
}
