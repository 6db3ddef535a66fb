// Package arena holds the id-keyed world state of one match on this client.
package arena

import (
	"sort"

	"github.com/OCAP2/arena/pkg/core"
)

// Arena stores players and in-flight projectiles by id.
// It is owned by the session tick loop and is not safe for concurrent use.
type Arena struct {
	localID     string
	players     map[string]*core.PlayerState
	order       []string
	projectiles map[uint64]*core.Projectile
	nextShot    uint64
}

// New creates an empty arena for the given local player id.
func New(localID string) *Arena {
	return &Arena{
		localID:     localID,
		players:     make(map[string]*core.PlayerState),
		projectiles: make(map[uint64]*core.Projectile),
	}
}

// LocalID returns the id of the player this client controls.
func (a *Arena) LocalID() string {
	return a.localID
}

// Reset drops every player and projectile. Projectile ids keep increasing.
func (a *Arena) Reset() {
	a.players = make(map[string]*core.PlayerState)
	a.order = nil
	a.projectiles = make(map[uint64]*core.Projectile)
}

// AddPlayer inserts or replaces a player. A replaced player keeps its slot.
func (a *Arena) AddPlayer(p core.PlayerState) *core.PlayerState {
	p.IsLocal = p.ID == a.localID
	if existing, ok := a.players[p.ID]; ok {
		*existing = p
		return existing
	}
	stored := p
	a.players[p.ID] = &stored
	a.order = append(a.order, p.ID)
	return &stored
}

// RemovePlayer deletes a player and reports whether it was present.
func (a *Arena) RemovePlayer(id string) bool {
	if _, ok := a.players[id]; !ok {
		return false
	}
	delete(a.players, id)
	for i, pid := range a.order {
		if pid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

// Player returns the stored player for id.
func (a *Arena) Player(id string) (*core.PlayerState, bool) {
	p, ok := a.players[id]
	return p, ok
}

// Local returns the local player, if it has joined.
func (a *Arena) Local() (*core.PlayerState, bool) {
	return a.Player(a.localID)
}

// Players returns the stored players in insertion order.
func (a *Arena) Players() []*core.PlayerState {
	out := make([]*core.PlayerState, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.players[id])
	}
	return out
}

// Snapshot copies the players in insertion order.
func (a *Arena) Snapshot() []core.PlayerState {
	out := make([]core.PlayerState, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, *a.players[id])
	}
	return out
}

// NextProjectileID hands out a fresh, never reused projectile id.
func (a *Arena) NextProjectileID() uint64 {
	a.nextShot++
	return a.nextShot
}

// AddProjectile stores p, assigning an id when it has none.
func (a *Arena) AddProjectile(p core.Projectile) *core.Projectile {
	if p.ID == 0 {
		p.ID = a.NextProjectileID()
	}
	stored := p
	a.projectiles[p.ID] = &stored
	return &stored
}

// RemoveProjectile deletes a projectile and reports whether it was still live.
func (a *Arena) RemoveProjectile(id uint64) bool {
	if _, ok := a.projectiles[id]; !ok {
		return false
	}
	delete(a.projectiles, id)
	return true
}

// Projectile returns a live projectile by id.
func (a *Arena) Projectile(id uint64) (*core.Projectile, bool) {
	p, ok := a.projectiles[id]
	return p, ok
}

// Projectiles returns live projectiles ordered by id.
func (a *Arena) Projectiles() []*core.Projectile {
	out := make([]*core.Projectile, 0, len(a.projectiles))
	for _, p := range a.projectiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
