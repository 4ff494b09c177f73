package utils

import (
	"math/rand/v2"
	"sync"
	"time"
)

// RandSource is a seeded random number generator. It is safe for concurrent use.
type RandSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	src *lockedSource
}

// lockedSource serializes access to the underlying PCG.
type lockedSource struct {
	mu  *sync.Mutex
	pcg *rand.PCG
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pcg.Uint64()
}

// NewRandSource creates a new random source with the given seed.
// A zero seed uses the current time.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &RandSource{}
	r.src = &lockedSource{mu: &r.mu, pcg: rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)}
	r.rng = rand.New(r.src)
	return r
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.IntN(n)
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// Perm returns a random permutation of [0, n)
func (r *RandSource) Perm(n int) []int {
	return r.rng.Perm(n)
}
