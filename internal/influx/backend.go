package influx

import (
	"context"
	"sync"
	"time"

	"github.com/OCAP2/arena/pkg/core"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Backend records match events as time series. It satisfies storage.Backend.
type Backend struct {
	m *Manager

	mu      sync.RWMutex
	code    string
	localID string
	started time.Time
	events  int
}

// NewBackend wraps a manager that has not connected yet.
func NewBackend(m *Manager) *Backend {
	return &Backend{m: m}
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.m.Connect(ctx)
}

// Close flushes everything and releases the client.
func (b *Backend) Close() error {
	return b.m.Close()
}

func (b *Backend) tags(extra map[string]string) map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t := map[string]string{"match": b.code}
	for k, v := range extra {
		t[k] = v
	}
	return t
}

func (b *Backend) write(measurement string, tags map[string]string, fields map[string]any, ts time.Time) error {
	b.mu.Lock()
	b.events++
	b.mu.Unlock()
	return b.m.WritePoint(b.m.EventBucket(), influxdb2_write.NewPoint(measurement, b.tags(tags), fields, ts))
}

// StartMatch tags subsequent points with the match code and writes the roster.
func (b *Backend) StartMatch(info *core.MatchInfo) error {
	b.mu.Lock()
	b.code = info.Code
	b.localID = info.LocalID
	b.started = info.StartTime
	b.events = 0
	b.mu.Unlock()

	for _, p := range info.Players {
		err := b.write("participant", map[string]string{"player": p.ID, "map": info.Settings.MapID}, map[string]any{
			"name":     p.Name,
			"x":        p.Position.X,
			"y":        p.Position.Y,
			"speed":    p.Stats.Speed,
			"hitPower": p.Stats.HitPower,
		}, info.StartTime)
		if err != nil {
			return err
		}
	}
	return nil
}

// EndMatch writes one ranking point per player plus a summary point and flushes.
func (b *Backend) EndMatch(result core.MatchResult) error {
	now := time.Now()
	for _, r := range result.Rankings {
		err := b.write("ranking", map[string]string{"player": r.PlayerID}, map[string]any{
			"rank":    r.Rank,
			"score":   r.Score,
			"kills":   r.Kills,
			"deaths":  r.Deaths,
			"kdRatio": r.KDRatio,
			"health":  r.Health,
		}, now)
		if err != nil {
			return err
		}
	}

	b.mu.RLock()
	perf := influxdb2_write.NewPoint("match_summary",
		map[string]string{"match": b.code, "local": b.localID},
		map[string]any{
			"events":   b.events,
			"duration": now.Sub(b.started).Seconds(),
			"winner":   result.WinnerID,
			"draw":     result.Draw,
		}, now)
	b.mu.RUnlock()
	if err := b.m.WritePoint(PerformanceBucket, perf); err != nil {
		return err
	}
	return b.m.Flush()
}

// RecordShot writes a shot point.
func (b *Backend) RecordShot(e *core.ShotEvent) error {
	return b.write("shot", map[string]string{"player": e.ShooterID}, map[string]any{
		"originX":  e.Origin.X,
		"originY":  e.Origin.Y,
		"targetX":  e.Target.X,
		"targetY":  e.Target.Y,
		"distance": e.Origin.Dist(e.Target),
		"damage":   e.Damage,
		"cosmetic": e.Cosmetic,
	}, e.Time)
}

// RecordHit writes a hit point tagged with both players.
func (b *Backend) RecordHit(e *core.HitEvent) error {
	return b.write("hit", map[string]string{"player": e.ShooterID, "victim": e.VictimID}, map[string]any{
		"damage": e.Damage,
		"health": e.Health,
		"x":      e.Position.X,
		"y":      e.Position.Y,
	}, e.Time)
}

// RecordElimination writes an elimination point.
func (b *Backend) RecordElimination(e *core.EliminationEvent) error {
	return b.write("elimination", map[string]string{"player": e.PlayerID, "killer": e.KillerID}, map[string]any{
		"x": e.Position.X,
		"y": e.Position.Y,
	}, e.Time)
}

// RecordRespawn writes a respawn point.
func (b *Backend) RecordRespawn(e *core.RespawnEvent) error {
	return b.write("respawn", map[string]string{"player": e.PlayerID}, map[string]any{
		"health": e.Health,
		"x":      e.Position.X,
		"y":      e.Position.Y,
	}, e.Time)
}

// RecordChat writes the length of a chat line. The text itself is not stored.
func (b *Backend) RecordChat(e *core.ChatEvent) error {
	return b.write("chat", map[string]string{"player": e.SenderID}, map[string]any{
		"length": len(e.Text),
	}, e.Time)
}
