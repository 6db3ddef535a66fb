package combat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/arena/pkg/core"
)

func TestClampTarget(t *testing.T) {
	got := ClampTarget(core.Vec2{}, core.Vec2{X: 1000}, 10, DefaultAimScale)
	assert.InDelta(t, 150.0, got.X, 1e-9)
	assert.InDelta(t, 0.0, got.Y, 1e-9)

	inside := core.Vec2{X: 30, Y: -40}
	assert.Equal(t, inside, ClampTarget(core.Vec2{}, inside, 10, DefaultAimScale))

	origin := core.Vec2{X: 100, Y: 100}
	far := ClampTarget(origin, core.Vec2{X: 1100, Y: 1100}, 2, 0)
	assert.InDelta(t, 30.0, far.Dist(origin), 1e-9)
	assert.InDelta(t, far.X-origin.X, far.Y-origin.Y, 1e-9, "stays on the aim segment")
}

func TestClampTarget_DefaultRange(t *testing.T) {
	got := ClampTarget(core.Vec2{}, core.Vec2{Y: 500}, 0, 0)
	assert.InDelta(t, 150.0, got.Y, 1e-9)
}

func TestFlatKeepsValue(t *testing.T) {
	assert.Equal(t, 10, Flat(10))
	assert.Equal(t, 0, Flat(0))
}

func TestStatFormula_Scenario(t *testing.T) {
	r := NewResolver(42)
	base := 80 / 1.4
	lo := int(math.Round(base * VarianceMin))
	hi := int(math.Round(base * VarianceMax))
	critLo := int(math.Round(base * VarianceMin * CritMultiplier))
	critHi := int(math.Round(base * VarianceMax * CritMultiplier))

	crits := 0
	for i := 0; i < 2000; i++ {
		out := r.StatFormula(80, 40)
		assert.InDelta(t, base, out.Base, 1e-9)
		if out.Critical {
			crits++
			assert.GreaterOrEqual(t, out.Damage, critLo)
			assert.LessOrEqual(t, out.Damage, critHi)
		} else {
			assert.GreaterOrEqual(t, out.Damage, lo)
			assert.LessOrEqual(t, out.Damage, hi)
		}
	}
	assert.Greater(t, crits, 0)
	assert.Less(t, crits, 300)
}

func TestStatFormula_NeverBelowOne(t *testing.T) {
	r := NewResolver(7)
	inputs := [][2]float64{{0, 0}, {0, 500}, {1, 10000}, {-5, 3}, {3, -50}, {0.2, 0}}
	for _, in := range inputs {
		for i := 0; i < 50; i++ {
			out := r.StatFormula(in[0], in[1], WithFalloff(float64(i*10), 200))
			require.GreaterOrEqual(t, out.Damage, MinDamage, "attack=%v defense=%v", in[0], in[1])
		}
	}
}

func TestStatFormula_Reproducible(t *testing.T) {
	a, b := NewResolver(99), NewResolver(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.StatFormula(50, 20), b.StatFormula(50, 20))
	}
}

func TestStatFormula_FalloffBeyondRange(t *testing.T) {
	r := NewResolver(1)
	out := r.StatFormula(1000, 0, WithFalloff(500, 100))
	assert.Equal(t, 0.0, out.Falloff)
	assert.Equal(t, MinDamage, out.Damage)
}

func TestFalloff(t *testing.T) {
	assert.Equal(t, 1.0, Falloff(10, 100))
	assert.Equal(t, 1.0, Falloff(50, 100))
	assert.InDelta(t, 0.5, Falloff(75, 100), 1e-9)
	assert.Equal(t, 0.0, Falloff(100, 100))
	assert.Equal(t, 0.0, Falloff(150, 100))
	assert.Equal(t, 1.0, Falloff(150, 0))
}
