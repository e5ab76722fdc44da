// Package bucket defines the fixed-width wire record shared by every DHT
// strategy: a key, a GridCell payload, a status word that doubles as the
// fine-grained strategy's per-bucket lock, and a checksum used by the
// lock-free strategy to detect torn writes.
//
// The layout is byte-addressable and identical on every peer so that a
// bucket can be memcpy'd across process boundaries: see Size, statusOffset
// and checksumOffset for the exact field positions.
package bucket

import (
	"fmt"
	"math"
)

// Status values. LOCKED is a transient state visible only during a
// fine-grained write; it is never observed by the coarse-grained or
// lock-free strategies because they never write it.
const (
	StatusEmpty    int32 = 0
	StatusOccupied int32 = 1
	StatusLocked   int32 = 2
)

// GridCell is the simulation payload: S species concentrations plus two
// flux scalars. S is fixed when the cell is constructed (via NewGridCell)
// and must match the NumSpecies a Bucket/Window was built with everywhere
// the cell travels.
type GridCell struct {
	Concentrations []float64
	FluxIn         float64
	FluxOut        float64
}

// NewGridCell returns a zero-valued cell with numSpecies concentrations.
func NewGridCell(numSpecies int) GridCell {
	return GridCell{Concentrations: make([]float64, numSpecies)}
}

// Equal reports whether two cells hold the same values, comparing every
// field with == (so 0 equals -0 and NaN never equals itself). Used by
// tests that check a returned payload against an expected one.
func (c GridCell) Equal(o GridCell) bool {
	if len(c.Concentrations) != len(o.Concentrations) {
		return false
	}
	for i := range c.Concentrations {
		if c.Concentrations[i] != o.Concentrations[i] {
			return false
		}
	}
	return c.FluxIn == o.FluxIn && c.FluxOut == o.FluxOut
}

// Bucket is one fixed-size slot of a Window's bucket array, the unit of RMA
// transfer. EMPTY buckets carry indeterminate Key/Payload; OCCUPIED buckets
// carry a Checksum consistent with Key/Payload as of the last release.
type Bucket struct {
	Key      int32
	Payload  GridCell
	Status   int32
	Checksum uint32
}

// Size returns sizeof(Bucket) in bytes for a bucket built with numSpecies
// concentrations: 4 (key) + 8*numSpecies (concentrations) + 8 (flux_in) +
// 8 (flux_out) + 4 (status) + 4 (checksum).
func Size(numSpecies int) int {
	return 28 + 8*numSpecies
}

func statusOffset(numSpecies int) int {
	return 20 + 8*numSpecies
}

func checksumOffset(numSpecies int) int {
	return 24 + 8*numSpecies
}

// StatusOffset and ChecksumOffset are exported so the fine-grained strategy
// can compute the byte offset of the lock word it targets with remote CAS.
func StatusOffset(numSpecies int) int   { return statusOffset(numSpecies) }
func ChecksumOffset(numSpecies int) int { return checksumOffset(numSpecies) }

// Marshal encodes b into buf, which must be exactly Size(numSpecies) bytes.
// Every field is written little-endian, matching the wire format every
// peer and every strategy agrees on.
func Marshal(buf []byte, b *Bucket, numSpecies int) {
	if len(buf) != Size(numSpecies) {
		panic(fmt.Sprintf("bucket: Marshal: buf has %d bytes, want %d", len(buf), Size(numSpecies)))
	}
	putInt32(buf[0:4], b.Key)
	off := 4
	for i := 0; i < numSpecies; i++ {
		c := 0.0
		if i < len(b.Payload.Concentrations) {
			c = b.Payload.Concentrations[i]
		}
		putFloat64(buf[off:off+8], c)
		off += 8
	}
	putFloat64(buf[off:off+8], b.Payload.FluxIn)
	putFloat64(buf[off+8:off+16], b.Payload.FluxOut)
	putInt32(buf[statusOffset(numSpecies):statusOffset(numSpecies)+4], b.Status)
	putUint32(buf[checksumOffset(numSpecies):checksumOffset(numSpecies)+4], b.Checksum)
}

// Unmarshal decodes buf (exactly Size(numSpecies) bytes) into b.
func Unmarshal(buf []byte, b *Bucket, numSpecies int) {
	if len(buf) != Size(numSpecies) {
		panic(fmt.Sprintf("bucket: Unmarshal: buf has %d bytes, want %d", len(buf), Size(numSpecies)))
	}
	b.Key = getInt32(buf[0:4])
	off := 4
	b.Payload = NewGridCell(numSpecies)
	for i := 0; i < numSpecies; i++ {
		b.Payload.Concentrations[i] = getFloat64(buf[off : off+8])
		off += 8
	}
	b.Payload.FluxIn = getFloat64(buf[off : off+8])
	b.Payload.FluxOut = getFloat64(buf[off+8 : off+16])
	b.Status = getInt32(buf[statusOffset(numSpecies) : statusOffset(numSpecies)+4])
	b.Checksum = getUint32(buf[checksumOffset(numSpecies) : checksumOffset(numSpecies)+4])
}

func putInt32(b []byte, v int32) {
	u := uint32(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
}

func getInt32(b []byte) int32 {
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putFloat64(b []byte, v float64) {
	u := math.Float64bits(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
	b[4] = byte(u >> 32)
	b[5] = byte(u >> 40)
	b[6] = byte(u >> 48)
	b[7] = byte(u >> 56)
}

func getFloat64(b []byte) float64 {
	u := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	return math.Float64frombits(u)
}
