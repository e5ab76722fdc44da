package strategy

import (
	"github.com/poetlab/dht/bucket"
	"github.com/poetlab/dht/rma"
)

// maxProbes bounds linear probing inside a coarse-grained critical
// section, per spec.md §4.3.
const maxProbes = 50

// Coarse is the coarse-grained strategy (C3): a whole-window shared lock
// guards every Get, a whole-window exclusive lock guards every Put, and
// linear probing resolves collisions inside the critical section. This is
// the strongly-serializable baseline every other strategy is compared
// against, grounded on original_source/coarse_grained_hash_table.hpp.
type Coarse struct {
	fabric     rma.Fabric
	numSpecies int
}

// NewCoarse constructs the coarse-grained strategy over fabric. fabric's
// lifetime is owned by the caller; Close releases it.
func NewCoarse(fabric rma.Fabric, numSpecies int) *Coarse {
	return &Coarse{fabric: fabric, numSpecies: numSpecies}
}

func (s *Coarse) Name() string { return "coarse-grained" }

// Put acquires an exclusive lock on key's owner window, then linearly
// probes from slot(key) for an EMPTY slot or a matching key, writing the
// new bucket there. Probing that exhausts maxProbes leaves the DHT
// unchanged (capacity exhausted, spec.md §7) — the write is silently
// dropped.
func (s *Coarse) Put(key int, payload bucket.GridCell) {
	pt := s.fabric.Partition()
	owner := pt.Owner(key)
	slot := pt.Slot(key)
	size := bucket.Size(s.numSpecies)

	s.fabric.LockExclusive(owner)
	defer s.fabric.UnlockExclusive(owner)

	for attempt := 0; attempt < maxProbes; attempt++ {
		offset := slot * size
		buf := s.fabric.Get(owner, offset, size)
		s.fabric.Flush(owner)

		var probed bucket.Bucket
		bucket.Unmarshal(buf, &probed, s.numSpecies)

		if probed.Status == bucket.StatusEmpty || probed.Key == int32(key) {
			b := bucket.Bucket{
				Key:     int32(key),
				Payload: payload,
				Status:  bucket.StatusOccupied,
			}
			b.Checksum = bucket.Checksum(b.Key, b.Payload)
			out := make([]byte, size)
			bucket.Marshal(out, &b, s.numSpecies)
			s.fabric.Put(owner, offset, out)
			return
		}

		slot = (slot + 1) % pt.LocalCapacity
	}
	// capacity exhausted: silently dropped.
}

// Get acquires a shared lock on key's owner window, then linearly probes
// from slot(key), returning the matching payload, a default payload on an
// EMPTY slot (key absent), or a default payload after maxProbes attempts
// (capacity exhausted / miss).
func (s *Coarse) Get(key int) bucket.GridCell {
	pt := s.fabric.Partition()
	owner := pt.Owner(key)
	slot := pt.Slot(key)
	size := bucket.Size(s.numSpecies)

	s.fabric.LockShared(owner)
	defer s.fabric.UnlockShared(owner)

	for attempt := 0; attempt < maxProbes; attempt++ {
		offset := slot * size
		buf := s.fabric.Get(owner, offset, size)
		s.fabric.Flush(owner)

		var probed bucket.Bucket
		bucket.Unmarshal(buf, &probed, s.numSpecies)

		if probed.Status == bucket.StatusEmpty {
			return bucket.NewGridCell(s.numSpecies)
		}
		if probed.Key == int32(key) {
			return probed.Payload
		}

		slot = (slot + 1) % pt.LocalCapacity
	}
	return bucket.NewGridCell(s.numSpecies)
}

// Sync is a bare collective barrier: coarse-grained locks are acquired
// and released per-operation, so there is nothing outstanding to flush.
func (s *Coarse) Sync() {
	s.fabric.Barrier()
}

func (s *Coarse) Close() error { return s.fabric.Close() }
