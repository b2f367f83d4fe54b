package dashboard

import (
	"math/rand/v2"
	"time"
)

// Simulated member growth parameters.
const (
	growthBase    = 450
	growthFloor   = 400
	growthStepMin = -5
	growthStepMax = 14
)

// Rand is the random source behind simulated growth. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewRand returns a source seeded from the current time.
func NewRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// SimulateGrowth produces n placeholder active member counts: a running
// total starting at 450 that moves by a uniform step in [-5, 14] per point,
// emitted with a floor of 400. The running total itself is not floored.
func SimulateGrowth(r Rand, n int) []float64 {
	out := make([]float64, 0, n)
	base := growthBase
	for i := 0; i < n; i++ {
		base += r.IntN(growthStepMax-growthStepMin+1) + growthStepMin
		out = append(out, float64(max(base, growthFloor)))
	}
	return out
}
