package strategy

import (
	"github.com/poetlab/dht/bucket"
	"github.com/poetlab/dht/rma"
)

// maxSpin bounds the total CAS attempts a fine-grained writer makes before
// abandoning the operation, per spec.md §4.4.
const maxSpin = 1000

// Fine is the fine-grained strategy (C4): each bucket's status word
// doubles as its own remote spinlock, acquired with a two-stage CAS
// (EMPTY→LOCKED, then OCCUPIED→LOCKED) and released with an atomic
// replace back to OCCUPIED. A persistent shared epoch (LockAll/UnlockAll)
// is opened at construction and closed at Close so individual operations
// issue atomics without per-call lock acquisition cost. Grounded on
// original_source/fine_grained_hash_table.hpp.
//
// This strategy does not linearly probe: each key occupies exactly its
// hash slot, relying on the 2x local-capacity oversizing to keep
// collisions statistically rare.
type Fine struct {
	fabric     rma.Fabric
	numSpecies int
}

// NewFine constructs the fine-grained strategy and opens its epoch.
func NewFine(fabric rma.Fabric, numSpecies int) *Fine {
	fabric.LockAll()
	return &Fine{fabric: fabric, numSpecies: numSpecies}
}

func (s *Fine) Name() string { return "fine-grained" }

// Put acquires bucket key's status-word spinlock, writes the full bucket,
// then atomically releases the lock back to OCCUPIED. If MAX_SPIN CAS
// attempts fail to acquire the lock, the write is silently dropped
// (contention exhausted, spec.md §7) and the drop is counted via
// RecordDropped for diagnostics.
func (s *Fine) Put(key int, payload bucket.GridCell) {
	pt := s.fabric.Partition()
	owner := pt.Owner(key)
	slot := pt.Slot(key)
	size := bucket.Size(s.numSpecies)
	base := slot * size
	lockOffset := base + bucket.StatusOffset(s.numSpecies)

	locked := false
	for attempt := 0; attempt < maxSpin; attempt++ {
		old := s.fabric.CompareAndSwap(owner, lockOffset, bucket.StatusEmpty, bucket.StatusLocked)
		s.fabric.Flush(owner)
		if old == bucket.StatusEmpty {
			locked = true
			break
		}
		old = s.fabric.CompareAndSwap(owner, lockOffset, bucket.StatusOccupied, bucket.StatusLocked)
		s.fabric.Flush(owner)
		if old == bucket.StatusOccupied {
			locked = true
			break
		}
	}
	if !locked {
		s.fabric.RecordDropped(owner)
		return
	}

	b := bucket.Bucket{
		Key:     int32(key),
		Payload: payload,
		Status:  bucket.StatusOccupied,
	}
	b.Checksum = bucket.Checksum(b.Key, b.Payload)
	out := make([]byte, size)
	bucket.Marshal(out, &b, s.numSpecies)
	s.fabric.Put(owner, base, out)
	s.fabric.Flush(owner)

	s.fabric.AtomicReplace(owner, lockOffset, bucket.StatusOccupied)
	s.fabric.Flush(owner)
}

// Get fetches bucket key's slot once and returns its payload if the
// bucket is quiescent (status OCCUPIED and key matches). A status of
// LOCKED is treated as a miss for this call — readers never block here,
// matching the tolerant benchmark workload spec.md §4.4 describes.
func (s *Fine) Get(key int) bucket.GridCell {
	pt := s.fabric.Partition()
	owner := pt.Owner(key)
	slot := pt.Slot(key)
	size := bucket.Size(s.numSpecies)
	offset := slot * size

	buf := s.fabric.Get(owner, offset, size)
	s.fabric.Flush(owner)

	var b bucket.Bucket
	bucket.Unmarshal(buf, &b, s.numSpecies)

	if b.Status != bucket.StatusOccupied || b.Key != int32(key) {
		return bucket.NewGridCell(s.numSpecies)
	}
	return b.Payload
}

// Sync is a bare collective barrier: fine-grained writes are serialized
// per-bucket by the spinlock, not by a global flush.
func (s *Fine) Sync() {
	s.fabric.Barrier()
}

func (s *Fine) Close() error {
	s.fabric.UnlockAll()
	return s.fabric.Close()
}
