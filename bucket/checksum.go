package bucket

import "math"

// Checksum computes H(key, payload): a boost::hash_combine-style mixing of
// the key and every concentration. It pins the hash of a double to the bit
// pattern of its IEEE-754 encoding (math.Float64bits) rather than to any
// language- or platform-specific hash of float64, so two peers that agree
// on the bits of a concentration always agree on its checksum contribution.
func Checksum(key int32, payload GridCell) uint32 {
	h := hashInt32(key)
	for _, c := range payload.Concentrations {
		h ^= hashFloat64(c) + 0x9e3779b9 + (h << 6) + (h >> 2)
	}
	return h
}

func hashInt32(v int32) uint32 {
	return uint32(v)
}

func hashFloat64(v float64) uint32 {
	bits := math.Float64bits(v)
	return uint32(bits) ^ uint32(bits>>32)
}
