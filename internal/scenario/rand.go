package scenario

import "math/rand/v2"

// Rand is the scenario generator's shared source of randomness. A tree's
// Sequence and Choice nodes all draw from the same Rand, and Reset
// reseeds it back to the construction seed so a drained tree can be
// restarted deterministically (see Tree.Reset).
type Rand struct {
	seed uint64
	r    *rand.Rand
}

// NewRand constructs a deterministic Rand from seed.
func NewRand(seed uint64) *Rand {
	return &Rand{seed: seed, r: rand.New(rand.NewPCG(seed, seed))}
}

// Reset reseeds the generator back to its construction seed.
func (r *Rand) Reset() {
	r.r = rand.New(rand.NewPCG(r.seed, r.seed))
}

// IntN returns a uniform value in [0, n).
func (r *Rand) IntN(n int) int { return r.r.IntN(n) }

// Shuffle permutes n elements via swap, Fisher-Yates.
func (r *Rand) Shuffle(n int, swap func(i, j int)) { r.r.Shuffle(n, swap) }
