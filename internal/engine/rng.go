// Package engine supplies the random sources that drive local round narratives.
//
// Live play draws from crypto/rand. NewSeeded gives a reproducible PCG stream,
// and fair.go derives per-round streams from a seed pair and nonce.
package engine

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform floats in [0, 1).
type RandomSource interface {
	Float64() float64
}

// Intn draws a uniform integer in [0, n) from src. It returns 0 when n <= 1.
func Intn(src RandomSource, n int) int {
	if n <= 1 {
		return 0
	}
	i := int(math.Floor(src.Float64() * float64(n)))
	if i >= n {
		i = n - 1
	}
	return i
}

// IntRange draws a uniform integer in [lo, hi].
func IntRange(src RandomSource, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + Intn(src, hi-lo+1)
}

// Coin returns true with probability one half.
func Coin(src RandomSource) bool {
	return src.Float64() >= 0.5
}

type cryptoSource struct{}

func (cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

// Crypto returns the default source backed by crypto/rand.
func Crypto() RandomSource { return cryptoSource{} }

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a reproducible source. Safe for concurrent use.
func NewSeeded(seed uint64) RandomSource {
	return &seededSource{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}
