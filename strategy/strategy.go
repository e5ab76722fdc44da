// Package strategy implements the three interchangeable DHT concurrency
// strategies spec.md compares: coarse-grained window locking, fine-grained
// per-bucket CAS spinlocks, and lock-free optimistic writes validated by
// checksum. Each is a small struct satisfying Strategy, not a class
// hierarchy, per spec.md §9.
package strategy

import "github.com/poetlab/dht/bucket"

// Strategy is the DHT contract consumed by the simulation driver and the
// benchmark harness (spec.md §6).
type Strategy interface {
	// Put overwrites or inserts key's payload. No return on contention:
	// a strategy may silently drop a write under extreme load rather
	// than block or error (spec.md §7).
	Put(key int, payload bucket.GridCell)
	// Get returns key's payload, or a zero-initialized payload if key
	// is absent or unreadable under contention.
	Get(key int) bucket.GridCell
	// Sync is a collective operation establishing a consistent barrier
	// across every rank. Some strategies additionally flush pending
	// writes outbound before the barrier.
	Sync()
	// Name identifies the strategy for logging.
	Name() string
	// Close releases the strategy's fabric.
	Close() error
}
