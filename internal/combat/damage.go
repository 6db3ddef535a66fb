package combat

import (
	"math"
	"math/rand/v2"
)

// Stat-formula tuning.
const (
	VarianceMin    = 0.95
	VarianceMax    = 1.05
	CritChance     = 0.05
	CritMultiplier = 1.5
	MinDamage      = 1
)

// Flat is the weapon damage path: the amount carried on the fire message is
// applied as-is. It does not floor at MinDamage, unlike StatFormula, and callers
// treat the value as already validated.
func Flat(amount int) int {
	return amount
}

// Outcome describes one stat-formula roll.
type Outcome struct {
	Damage   int
	Base     float64
	Variance float64
	Critical bool
	Falloff  float64
}

type formulaOptions struct {
	distance float64
	maxRange float64
}

// FormulaOption tunes a StatFormula roll.
type FormulaOption func(*formulaOptions)

// WithFalloff applies range falloff: full damage up to half of maxRange, linear
// decay to zero at maxRange and nothing beyond.
func WithFalloff(distance, maxRange float64) FormulaOption {
	return func(o *formulaOptions) {
		o.distance = distance
		o.maxRange = maxRange
	}
}

// Resolver rolls stat-formula damage from a seeded source so a match can be
// replayed with the same outcomes.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver seeds a PCG source with seed.
func NewResolver(seed uint64) *Resolver {
	return NewResolverFromSource(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewResolverFromSource uses src for every roll.
func NewResolverFromSource(src rand.Source) *Resolver {
	return &Resolver{rng: rand.New(src)}
}

// StatFormula computes attack/(1+defense/100) with variance, a critical chance
// and optional falloff. The result is rounded and never below MinDamage.
// Negative inputs count as zero.
func (r *Resolver) StatFormula(attack, defense float64, opts ...FormulaOption) Outcome {
	var o formulaOptions
	for _, opt := range opts {
		opt(&o)
	}

	attack = math.Max(0, attack)
	defense = math.Max(0, defense)

	out := Outcome{
		Base:     attack / (1 + defense/100),
		Variance: VarianceMin + r.rng.Float64()*(VarianceMax-VarianceMin),
		Falloff:  1,
	}
	dmg := out.Base * out.Variance
	if r.rng.Float64() < CritChance {
		out.Critical = true
		dmg *= CritMultiplier
	}
	if o.maxRange > 0 {
		out.Falloff = Falloff(o.distance, o.maxRange)
		dmg *= out.Falloff
	}

	out.Damage = int(math.Round(dmg))
	if out.Damage < MinDamage {
		out.Damage = MinDamage
	}
	return out
}

// Falloff returns the damage multiplier at distance for a weapon reaching maxRange.
func Falloff(distance, maxRange float64) float64 {
	if maxRange <= 0 {
		return 1
	}
	half := maxRange / 2
	switch {
	case distance <= half:
		return 1
	case distance >= maxRange:
		return 0
	default:
		return (maxRange - distance) / half
	}
}
