package rma

import "fmt"

// Partition maps a global key in [0, N) to an owning rank and a slot
// within that rank's local bucket array, per the flat owner(k) = k mod P
// scheme. LocalCapacity keeps the load factor at or below 0.5 so linear
// probing in the coarse-grained strategy terminates quickly.
type Partition struct {
	P             int
	LocalCapacity int
}

// NewPartition computes LocalCapacity from the expected number of entries
// N and the process count p: max(100, 2*ceil(N/p)).
func NewPartition(p, n int) Partition {
	if p <= 0 {
		panic(fmt.Sprintf("rma: NewPartition: p must be positive, got %d", p))
	}
	capacity := 2 * ceilDiv(n, p)
	if capacity < 100 {
		capacity = 100
	}
	return Partition{P: p, LocalCapacity: capacity}
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Owner returns the rank that owns key.
func (pt Partition) Owner(key int) int {
	return key % pt.P
}

// Slot returns the slot within the owning rank's bucket array that key
// hashes to, before any linear probing. Wrapped defensively so a
// misconfigured LocalCapacity never indexes out of bounds.
func (pt Partition) Slot(key int) int {
	slot := key / pt.P
	if slot >= pt.LocalCapacity {
		slot %= pt.LocalCapacity
	}
	return slot
}
