package bench

import "math/rand"

// KeyGenerator draws the next global key a benchmark operation targets.
// Adapted from client/zipf.go's KeyGenerator abstraction: the teacher
// used it to skew client request distributions, and the same shape fits
// this benchmark's key selection without changing the default behavior
// spec.md requires (uniform over [0, N)).
type KeyGenerator interface {
	NextKey() int
}

// UniformKeyGenerator draws keys uniformly at random from [0, n). This is
// what every microbenchmark in spec.md §4.7 uses; Run defaults to it
// when Params.Keys is nil.
type UniformKeyGenerator struct {
	rand *rand.Rand
	n    int
}

func NewUniformKeyGenerator(n int, seed int64) *UniformKeyGenerator {
	return &UniformKeyGenerator{rand: rand.New(rand.NewSource(seed)), n: n}
}

func (g *UniformKeyGenerator) NextKey() int { return g.rand.Intn(g.n) }

// ZipfKeyGenerator draws keys with a Zipf skew: low-numbered keys are
// selected disproportionately often. Not used by any microbenchmark
// spec.md describes, but available for callers that want to exercise a
// hot-key access pattern against the DHT — a case the coarse-grained
// strategy's whole-window lock handles very differently from the
// fine-grained and lock-free strategies' per-bucket contention.
type ZipfKeyGenerator struct {
	zipf *rand.Zipf
}

// NewZipfKeyGenerator returns a generator over [0, n) with skew s (clamped
// to the minimum Go's rand.Zipf accepts, s > 1).
func NewZipfKeyGenerator(n int, s float64, seed int64) *ZipfKeyGenerator {
	if s <= 1.0 {
		s = 1.01
	}
	r := rand.New(rand.NewSource(seed))
	return &ZipfKeyGenerator{zipf: rand.NewZipf(r, s, 1.0, uint64(n-1))}
}

func (g *ZipfKeyGenerator) NextKey() int { return int(g.zipf.Uint64()) }
