package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/arena/internal/arena"
	"github.com/OCAP2/arena/pkg/core"
)

type recorder struct {
	eliminated []core.EliminationEvent
	respawned  []core.RespawnEvent
}

func (r *recorder) Eliminated(e core.EliminationEvent) { r.eliminated = append(r.eliminated, e) }
func (r *recorder) Respawned(e core.RespawnEvent)      { r.respawned = append(r.respawned, e) }

func setup(health int) (*arena.Arena, *Manager, *recorder) {
	a := arena.New("me")
	p := core.NewPlayerState("foe", "Foe", core.Vec2{X: 5, Y: 5}, core.Stats{})
	p.Health = health
	a.AddPlayer(p)
	rec := &recorder{}
	return a, NewManager("M1", rec), rec
}

func TestApplyDamage_EliminatesOnce(t *testing.T) {
	a, m, rec := setup(15)
	now := time.Unix(100, 0)

	out, err := m.ApplyDamage(a, "foe", 40, "me", now)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Health)
	assert.Equal(t, 15, out.Applied)
	assert.True(t, out.Eliminated)

	out, err = m.ApplyDamage(a, "foe", 40, "me", now)
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.False(t, out.Eliminated)

	require.Len(t, rec.eliminated, 1)
	assert.Equal(t, "me", rec.eliminated[0].KillerID)
	assert.Equal(t, "M1", rec.eliminated[0].MatchCode)

	p, _ := a.Player("foe")
	assert.True(t, p.Eliminated)
	assert.Equal(t, 0, p.Health)
}

func TestApplyDamage_HealthStaysInRange(t *testing.T) {
	for _, dmg := range []int{-50, 0, 1, 30, 99, 100, 250} {
		a, m, _ := setup(core.MaxHealth)
		_, err := m.ApplyDamage(a, "foe", dmg, "", time.Now())
		require.NoError(t, err)
		p, _ := a.Player("foe")
		assert.GreaterOrEqual(t, p.Health, 0)
		assert.LessOrEqual(t, p.Health, core.MaxHealth)
		assert.Equal(t, p.Health == 0, p.Eliminated)
	}
}

func TestApplyDamage_UnknownPlayer(t *testing.T) {
	a, m, _ := setup(50)
	_, err := m.ApplyDamage(a, "ghost", 10, "", time.Now())
	require.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestMirror_ClampsAndLastWins(t *testing.T) {
	a, m, rec := setup(80)

	_, err := m.Mirror(a, "foe", 140, "", time.Now())
	require.NoError(t, err)
	p, _ := a.Player("foe")
	assert.Equal(t, core.MaxHealth, p.Health)

	_, err = m.Mirror(a, "foe", 30, "", time.Now())
	require.NoError(t, err)
	_, err = m.Mirror(a, "foe", 60, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 60, p.Health)

	out, err := m.Mirror(a, "foe", -10, "x", time.Now())
	require.NoError(t, err)
	assert.True(t, out.Eliminated)
	assert.Len(t, rec.eliminated, 1)

	// stale update after elimination is ignored
	out, err = m.Mirror(a, "foe", 70, "", time.Now())
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Equal(t, 0, p.Health)
}

func TestEliminate(t *testing.T) {
	a, m, rec := setup(50)
	ok, err := m.Eliminate(a, "foe", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Eliminate(a, "foe", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, rec.eliminated, 1)
}

func TestRespawn(t *testing.T) {
	a, m, rec := setup(10)
	_, err := m.ApplyDamage(a, "foe", 10, "me", time.Now())
	require.NoError(t, err)

	pos := core.Vec2{X: 400, Y: 300}
	out, err := m.Respawn(a, "foe", 100, pos, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100, out.Health)

	p, _ := a.Player("foe")
	assert.False(t, p.Eliminated)
	assert.Equal(t, 100, p.Health)
	assert.Equal(t, pos, p.Position)
	require.Len(t, rec.respawned, 1)

	// alive again, so damage applies
	out, err = m.ApplyDamage(a, "foe", 25, "me", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 75, out.Health)
}

func TestRespawn_RejectsZeroHealth(t *testing.T) {
	a, m, _ := setup(0)
	_, err := m.Respawn(a, "foe", 0, core.Vec2{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidRespawn)
}

func TestNilObserver(t *testing.T) {
	a := arena.New("me")
	a.AddPlayer(core.NewPlayerState("x", "", core.Vec2{}, core.Stats{}))
	m := NewManager("M", nil)
	_, err := m.ApplyDamage(a, "x", 500, "", time.Now())
	require.NoError(t, err)
}
