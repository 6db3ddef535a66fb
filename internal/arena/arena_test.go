package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/arena/pkg/core"
)

func TestArena_AddPlayerKeepsOrder(t *testing.T) {
	a := New("p2")

	a.AddPlayer(core.NewPlayerState("p1", "Ann", core.Vec2{}, core.Stats{}))
	a.AddPlayer(core.NewPlayerState("p2", "Bob", core.Vec2{}, core.Stats{}))
	a.AddPlayer(core.NewPlayerState("p3", "Cid", core.Vec2{}, core.Stats{}))

	updated := core.NewPlayerState("p1", "Ann", core.Vec2{X: 9, Y: 9}, core.Stats{})
	a.AddPlayer(updated)

	players := a.Players()
	require.Len(t, players, 3)
	assert.Equal(t, "p1", players[0].ID)
	assert.Equal(t, core.Vec2{X: 9, Y: 9}, players[0].Position)
	assert.Equal(t, "p3", players[2].ID)
}

func TestArena_LocalFlag(t *testing.T) {
	a := New("me")
	a.AddPlayer(core.PlayerState{ID: "me", IsLocal: false})
	a.AddPlayer(core.PlayerState{ID: "other", IsLocal: true})

	local, ok := a.Local()
	require.True(t, ok)
	assert.True(t, local.IsLocal)

	other, ok := a.Player("other")
	require.True(t, ok)
	assert.False(t, other.IsLocal)
}

func TestArena_RemovePlayer(t *testing.T) {
	a := New("me")
	a.AddPlayer(core.PlayerState{ID: "a"})
	a.AddPlayer(core.PlayerState{ID: "b"})

	assert.True(t, a.RemovePlayer("a"))
	assert.False(t, a.RemovePlayer("a"))

	snap := a.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "b", snap[0].ID)
}

func TestArena_PointerMutationIsVisible(t *testing.T) {
	a := New("me")
	a.AddPlayer(core.NewPlayerState("a", "", core.Vec2{}, core.Stats{}))

	p, _ := a.Player("a")
	p.Health = 40

	again, _ := a.Player("a")
	assert.Equal(t, 40, again.Health)
}

func TestArena_ProjectilesRemovedOnce(t *testing.T) {
	a := New("me")
	p1 := a.AddProjectile(core.Projectile{ShooterID: "me"})
	p2 := a.AddProjectile(core.Projectile{ShooterID: "me"})
	assert.Less(t, p1.ID, p2.ID)

	list := a.Projectiles()
	require.Len(t, list, 2)
	assert.Equal(t, p1.ID, list[0].ID)

	assert.True(t, a.RemoveProjectile(p1.ID))
	assert.False(t, a.RemoveProjectile(p1.ID))
	assert.Len(t, a.Projectiles(), 1)
}

func TestArena_ResetKeepsIDsMonotonic(t *testing.T) {
	a := New("me")
	first := a.AddProjectile(core.Projectile{})
	a.AddPlayer(core.PlayerState{ID: "x"})

	a.Reset()
	assert.Empty(t, a.Players())
	assert.Empty(t, a.Projectiles())

	second := a.AddProjectile(core.Projectile{})
	assert.Greater(t, second.ID, first.ID)
}
