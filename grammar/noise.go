package grammar

import "math/rand"

// Noise produces the perturbation r applied when a rule's probability mass is
// divided between the splits of its children: one half gets (1+r), the other
// (1-r). Values must lie in (-1, 1).
type Noise interface {
	Next() float64
}

// ZeroNoise divides mass evenly.
type ZeroNoise struct{}

func (ZeroNoise) Next() float64 { return 0 }

// BiasedNoise always returns Amount. Useful in tests that need asymmetric but
// reproducible splits.
type BiasedNoise struct {
	Amount float64
}

func (n BiasedNoise) Next() float64 { return n.Amount }

// RandomNoise draws r uniformly from [-Amount, Amount].
type RandomNoise struct {
	Rand   *rand.Rand
	Amount float64
}

// NewRandomNoise creates a seeded RandomNoise.
func NewRandomNoise(seed int64, amount float64) *RandomNoise {
	return &RandomNoise{Rand: rand.New(rand.NewSource(seed)), Amount: amount}
}

func (n *RandomNoise) Next() float64 {
	return (2*n.Rand.Float64() - 1) * n.Amount
}
