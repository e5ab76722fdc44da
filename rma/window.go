package rma

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/poetlab/dht/bucket"
)

// Window is one rank's byte-addressable bucket array: the memory region
// exposed for RMA. Every peer can address any other peer's Window at
// slot*bucket.Size(numSpecies) bytes from the window base; the
// fine-grained strategy additionally addresses the sub-field offset of a
// bucket's status word.
//
// Window is padded to a cache line on both sides (golang.org/x/sys/cpu,
// grounded on llxisdsh-pb/mapof_opt_cachelinesize.go) so that an array of
// per-rank Windows doesn't let one rank's whole-window mutex and another
// rank's hot status-word CAS traffic false-share a line.
type Window struct {
	_ cpu.CacheLinePad

	mu         sync.RWMutex // coarse-grained strategy's whole-window lock
	buckets    []bucket.Bucket
	numSpecies int
	epochOpen  atomic.Bool // set while a fine-grained/lock-free epoch is open
	dropped    atomic.Uint64

	_ cpu.CacheLinePad
}

// NewWindow allocates and zero-initializes a bucket array of the given
// capacity. A freshly created window therefore reads back default payloads
// for every key (invariant 5 in spec.md §8): zero-valued Bucket.Status is
// StatusEmpty.
func NewWindow(localCapacity, numSpecies int) *Window {
	return &Window{
		buckets:    make([]bucket.Bucket, localCapacity),
		numSpecies: numSpecies,
	}
}

func (w *Window) bucketSize() int { return bucket.Size(w.numSpecies) }

func (w *Window) locate(byteOffset int) (slot, sub int) {
	size := w.bucketSize()
	return byteOffset / size, byteOffset % size
}

// Get copies the n bytes at byteOffset out of the bucket array. Used for
// both whole-bucket reads (sub==0, n==bucketSize) and status-word reads.
// Exported so transports outside this package (rpcfabric's RPC server)
// can apply a remote Get against their own rank's window.
func (w *Window) Get(byteOffset, n int) []byte {
	slot, sub := w.locate(byteOffset)
	buf := make([]byte, w.bucketSize())
	b := w.buckets[slot]
	bucket.Marshal(buf, &b, w.numSpecies)
	out := make([]byte, n)
	copy(out, buf[sub:sub+n])
	return out
}

// Put overwrites a whole bucket. The DHT strategies never Put a partial
// bucket; CompareAndSwap/AtomicReplace are the only sub-field writers.
func (w *Window) Put(byteOffset int, data []byte) {
	slot, sub := w.locate(byteOffset)
	if sub != 0 || len(data) != w.bucketSize() {
		panic("rma: Window.Put: only whole-bucket puts are supported")
	}
	var b bucket.Bucket
	bucket.Unmarshal(data, &b, w.numSpecies)
	w.buckets[slot] = b
}

// CompareAndSwap performs an atomic compare-and-swap on the int32 word at
// byteOffset (always the bucket's status field in practice) and returns
// the value observed immediately before the attempt, mirroring
// MPI_Compare_and_swap's "always returns the prior value" semantics rather
// than Go's boolean CompareAndSwap.
func (w *Window) CompareAndSwap(byteOffset int, expect, desired int32) int32 {
	slot, sub := w.locate(byteOffset)
	if sub != bucket.StatusOffset(w.numSpecies) {
		panic("rma: Window.CompareAndSwap: only the status word supports CAS")
	}
	ptr := &w.buckets[slot].Status
	for {
		old := atomic.LoadInt32(ptr)
		if old != expect {
			return old
		}
		if atomic.CompareAndSwapInt32(ptr, expect, desired) {
			return old
		}
	}
}

// AtomicReplace performs MPI_Accumulate(..., MPI_REPLACE, ...): an
// unconditional, atomically-ordered store to the status word.
func (w *Window) AtomicReplace(byteOffset int, value int32) {
	slot, sub := w.locate(byteOffset)
	if sub != bucket.StatusOffset(w.numSpecies) {
		panic("rma: Window.AtomicReplace: only the status word supports atomic replace")
	}
	atomic.StoreInt32(&w.buckets[slot].Status, value)
}

// LockShared/LockExclusive and their Unlock counterparts expose the
// window's whole-window mutex to transports outside this package.
func (w *Window) LockShared()      { w.mu.RLock() }
func (w *Window) UnlockShared()    { w.mu.RUnlock() }
func (w *Window) LockExclusive()   { w.mu.Lock() }
func (w *Window) UnlockExclusive() { w.mu.Unlock() }

// SetEpochOpen records whether a persistent passive-target epoch is open.
// The flag is stored only; no code in this module reads it back.
func (w *Window) SetEpochOpen(open bool) { w.epochOpen.Store(open) }

// ContentionDropped reports how many fine-grained writes this window has
// silently abandoned after exhausting MAX_SPIN CAS attempts — a
// diagnostic counter suggested by spec.md §9's open question, exposed
// read-only and never consulted by correctness logic.
func (w *Window) ContentionDropped() uint64 {
	return w.dropped.Load()
}

// RecordDropped increments the window's contention-dropped counter.
func (w *Window) RecordDropped() {
	w.dropped.Add(1)
}
