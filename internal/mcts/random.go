package mcts

import "math/rand/v2"

// RandSource is the only source of randomness used by the engine: expansion
// order and rollout action choice. *rand.Rand from math/rand/v2 satisfies it.
//
// A RandSource is not safe for concurrent use; root-parallel runs give each
// worker its own source.
type RandSource interface {
	// IntN returns a uniform integer in [0, n). n is always > 0.
	IntN(n int) int
}

// pcgStream separates the two PCG state words derived from one seed.
const pcgStream = 0x9E3779B97F4A7C15

// NewRandSource returns a reproducible source for seed.
func NewRandSource(seed int64) RandSource {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^pcgStream))
}

// EntropySeed draws a seed from the runtime's randomly seeded generator.
func EntropySeed() int64 {
	return rand.Int64()
}

// workerSeed derives the seed of one root-parallel worker.
func workerSeed(base int64, worker int) int64 {
	return int64(uint64(base) + uint64(worker)*pcgStream)
}
