package engine

import "hash/fnv"

// SeededRng is a splitmix64 stream. Built once per session from the session
// seed string and never reseeded.
type SeededRng struct{ state uint64 }

func NewSeededRng(seed string) *SeededRng { return &SeededRng{state: HashSeed(seed)} }

// HashSeed is FNV-1a over the seed string.
func HashSeed(seed string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return h.Sum64()
}

func (s *SeededRng) Uint64() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}

// Float64 is uniform in [0,1).
func (s *SeededRng) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

func (s *SeededRng) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint64() % uint64(n))
}
