package relay

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/arena/internal/transport"
	"github.com/OCAP2/arena/pkg/core"
	"github.com/OCAP2/arena/pkg/protocol"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRelay(t *testing.T, cfg Config) (*Hub, string) {
	t.Helper()
	hub := NewHub(cfg, quietLogger())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type client struct {
	t  *testing.T
	id string
	c  *transport.Client
}

func join(t *testing.T, url, id string, codec protocol.Codec) *client {
	t.Helper()
	c, err := transport.Dial(context.Background(), transport.Options{URL: url, Codec: codec, Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Send(protocol.TypeJoinMatch, protocol.JoinMatch{MatchCode: "M1", PlayerID: id, Name: strings.ToUpper(id)}))
	return &client{t: t, id: id, c: c}
}

// expect skips other messages until one of msgType arrives.
func (c *client) expect(msgType string) protocol.Envelope {
	c.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env := <-c.c.Inbound():
			if env.Type == msgType {
				return env
			}
		case <-timeout:
			c.t.Fatalf("%s: no %s within timeout", c.id, msgType)
			return protocol.Envelope{}
		}
	}
}

func decode[T any](t *testing.T, c *client, env protocol.Envelope) T {
	t.Helper()
	v, err := protocol.Decode[T](c.c.Codec(), env)
	require.NoError(t, err)
	return v
}

func TestRoomStartsWhenEnoughPlayersJoin(t *testing.T) {
	hub, url := startRelay(t, Config{Duration: time.Minute})

	a := join(t, url, "p1", protocol.JSON{})
	st := decode[protocol.MatchSnapshot](t, a, a.expect(protocol.TypeMatchState))
	assert.Equal(t, core.StatusLobby, st.Match.Status)
	require.Len(t, st.Match.Players, 1)
	assert.Equal(t, "P1", st.Match.Players[0].Name)

	b := join(t, url, "p2", protocol.CBOR{})
	joined := decode[protocol.PlayerJoined](t, a, a.expect(protocol.TypePlayerJoined))
	assert.Equal(t, "p2", joined.Player.ID)

	for _, c := range []*client{a, b} {
		started := decode[protocol.MatchSnapshot](t, c, c.expect(protocol.TypeMatchStarted))
		assert.Equal(t, core.StatusActive, started.Match.Status)
		assert.Equal(t, 60, started.Match.Settings.DurationSeconds)
		assert.Equal(t, "dunes", started.Match.Settings.MapID)
		assert.Len(t, started.Match.Players, 2)
	}

	assert.Equal(t, []RoomInfo{{Code: "M1", Players: 2}}, hub.Rooms())
}

func TestMovesAndShotsFanOut(t *testing.T) {
	_, url := startRelay(t, Config{Duration: time.Minute})
	a := join(t, url, "p1", protocol.JSON{})
	b := join(t, url, "p2", protocol.CBOR{})
	a.expect(protocol.TypeMatchStarted)
	b.expect(protocol.TypeMatchStarted)

	require.NoError(t, a.c.Send(protocol.TypePlayerMove, protocol.PlayerMove{
		MatchCode: "M1", PlayerID: "p1", X: protocol.Float(12), Y: protocol.Float(34),
	}))
	moved := decode[protocol.PlayerMoved](t, b, b.expect(protocol.TypePlayerMoved))
	assert.Equal(t, "p1", moved.PlayerID)
	assert.Equal(t, core.Vec2{X: 12, Y: 34}, moved.Position())

	// the relay stamps the sender, whatever the message claims
	require.NoError(t, a.c.Send(protocol.TypePlayerShoot, protocol.NewPlayerShoot("M1", "p2", core.Vec2{X: 1}, core.Vec2{X: 2}, 15)))
	shot := decode[protocol.PlayerShoot](t, b, b.expect(protocol.TypePlayerShoot))
	assert.Equal(t, "p1", shot.PlayerID)
	assert.Equal(t, 15, *shot.Damage)
	assert.Equal(t, core.Vec2{X: 2}, shot.Target())
}

func TestLethalHitTalliesAndRespawns(t *testing.T) {
	_, url := startRelay(t, Config{Duration: time.Minute, RespawnDelay: 50 * time.Millisecond})
	a := join(t, url, "p1", protocol.JSON{})
	b := join(t, url, "p2", protocol.JSON{})
	a.expect(protocol.TypeMatchStarted)
	b.expect(protocol.TypeMatchStarted)

	require.NoError(t, a.c.Send(protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{
		MatchCode: "M1", PlayerID: "p2", Health: protocol.Int(0), ShooterID: "p1", Damage: 10,
	}))

	upd := decode[protocol.PlayerHealthUpdate](t, b, b.expect(protocol.TypePlayerHealthUpdate))
	assert.Equal(t, 0, *upd.Health)
	assert.Equal(t, "p1", upd.ShooterID)

	for _, c := range []*client{a, b} {
		def := decode[protocol.PlayerDefeated](t, c, c.expect(protocol.TypePlayerDefeated))
		assert.Equal(t, "p2", def.PlayerID)

		lb := decode[protocol.LeaderboardUpdate](t, c, c.expect(protocol.TypeLeaderboardUpdate))
		require.Len(t, lb.Players, 2)
		assert.Equal(t, protocol.LeaderboardRow{PlayerID: "p1", Name: "P1", Score: PointsPerKill, Kills: 1}, lb.Players[0])
		assert.Equal(t, 1, lb.Players[1].Deaths)

		rs := decode[protocol.PlayerRespawned](t, c, c.expect(protocol.TypePlayerRespawned))
		assert.Equal(t, "p2", rs.PlayerID)
		assert.Equal(t, core.MaxHealth, *rs.Health)
		assert.Equal(t, spawnPoint(1), *rs.Position)
	}
}

func TestTimerEndsMatchWithRanking(t *testing.T) {
	_, url := startRelay(t, Config{Duration: 2 * time.Second, TimerInterval: 20 * time.Millisecond})
	a := join(t, url, "p1", protocol.JSON{})
	join(t, url, "p2", protocol.JSON{})
	a.expect(protocol.TypeMatchStarted)

	tick := decode[protocol.MatchTimer](t, a, a.expect(protocol.TypeMatchTimer))
	assert.Equal(t, 1, *tick.TimeLeft)

	ended := decode[protocol.MatchEnded](t, a, a.expect(protocol.TypeMatchEnded))
	require.Len(t, ended.Result.Rankings, 2)
	assert.True(t, ended.Result.Draw)
	assert.Equal(t, "p1", ended.Result.Rankings[0].PlayerID)
}

func TestChatIsRateLimited(t *testing.T) {
	_, url := startRelay(t, Config{Duration: time.Minute, ChatPerSecond: 0.01, ChatBurst: 1})
	a := join(t, url, "p1", protocol.JSON{})
	b := join(t, url, "p2", protocol.JSON{})
	b.expect(protocol.TypeMatchStarted)

	require.NoError(t, a.c.Send(protocol.TypeSendChatMessage, protocol.SendChatMessage{MatchCode: "M1", SenderID: "p1", Text: "one"}))
	require.NoError(t, a.c.Send(protocol.TypeSendChatMessage, protocol.SendChatMessage{MatchCode: "M1", SenderID: "p1", Text: "two"}))
	require.NoError(t, a.c.Send(protocol.TypePlayerMove, protocol.PlayerMove{MatchCode: "M1", PlayerID: "p1", X: protocol.Float(1), Y: protocol.Float(1)}))

	msg := decode[protocol.ChatMessage](t, b, b.expect(protocol.TypeChatMessage))
	assert.Equal(t, "one", msg.Text)
	assert.Positive(t, msg.Timestamp)

	// the move was sent after the second line, so everything before it has arrived
	for {
		env := <-b.c.Inbound()
		require.NotEqual(t, protocol.TypeChatMessage, env.Type, "second line should be dropped")
		if env.Type == protocol.TypePlayerMoved {
			break
		}
	}
}

func TestLeaveIsBroadcastAfterGrace(t *testing.T) {
	hub, url := startRelay(t, Config{Duration: time.Minute, RejoinGrace: 50 * time.Millisecond})
	a := join(t, url, "p1", protocol.JSON{})
	b := join(t, url, "p2", protocol.JSON{})
	a.expect(protocol.TypeMatchStarted)

	require.NoError(t, b.c.Close())
	left := decode[protocol.PlayerLeft](t, a, a.expect(protocol.TypePlayerLeft))
	assert.Equal(t, "p2", left.PlayerID)

	require.NoError(t, a.c.Close())
	assert.Eventually(t, func() bool { return len(hub.Rooms()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLobbyLeaveIsImmediate(t *testing.T) {
	hub, url := startRelay(t, Config{Duration: time.Minute, MinPlayers: 3})
	a := join(t, url, "p1", protocol.JSON{})
	b := join(t, url, "p2", protocol.JSON{})
	a.expect(protocol.TypePlayerJoined)

	require.NoError(t, b.c.Close())
	left := decode[protocol.PlayerLeft](t, a, a.expect(protocol.TypePlayerLeft))
	assert.Equal(t, "p2", left.PlayerID)
	assert.Equal(t, []RoomInfo{{Code: "M1", Players: 1}}, hub.Rooms())
}

func TestRejoinKeepsTally(t *testing.T) {
	_, url := startRelay(t, Config{Duration: time.Minute, RespawnDelay: time.Minute})
	a := join(t, url, "p1", protocol.JSON{})
	b := join(t, url, "p2", protocol.JSON{})
	a.expect(protocol.TypeMatchStarted)
	b.expect(protocol.TypeMatchStarted)

	require.NoError(t, a.c.Send(protocol.TypePlayerHealthUpdate, protocol.PlayerHealthUpdate{
		MatchCode: "M1", PlayerID: "p2", Health: protocol.Int(0), ShooterID: "p1", Damage: 10,
	}))
	a.expect(protocol.TypeLeaderboardUpdate)

	// p1's connection drops and its client dials again with the same id
	require.NoError(t, a.c.Close())
	again := join(t, url, "p1", protocol.JSON{})
	st := decode[protocol.MatchSnapshot](t, again, again.expect(protocol.TypeMatchState))
	assert.Equal(t, core.StatusActive, st.Match.Status)
	require.Len(t, st.Match.Players, 2)

	p1, p2 := st.Match.Players[0], st.Match.Players[1]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, PointsPerKill, p1.Score)
	assert.Equal(t, 1, p1.Kills)
	assert.Equal(t, spawnPoint(0), p1.Position)
	assert.Equal(t, 1, p2.Deaths)

	// the others never saw p1 leave
	require.NoError(t, again.c.Send(protocol.TypePlayerMove, protocol.PlayerMove{
		MatchCode: "M1", PlayerID: "p1", X: protocol.Float(7), Y: protocol.Float(7),
	}))
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env := <-b.c.Inbound():
			require.NotEqual(t, protocol.TypePlayerLeft, env.Type)
			if env.Type == protocol.TypePlayerMoved {
				return
			}
		case <-timeout:
			t.Fatal("p2: no move from the rejoined p1")
		}
	}
}

func TestTokenRequired(t *testing.T) {
	_, url := startRelay(t, Config{Token: "s3cret"})

	_, err := transport.Dial(context.Background(), transport.Options{URL: url, Logger: quietLogger()})
	require.Error(t, err)

	c, err := transport.Dial(context.Background(), transport.Options{URL: url, Token: "s3cret", Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, c.Close())
}

func TestSpawnPointsAreDistinct(t *testing.T) {
	seen := map[core.Vec2]bool{}
	for i := 0; i < 12; i++ {
		p := spawnPoint(i)
		assert.False(t, seen[p], "slot %d", i)
		seen[p] = true
	}
	assert.Equal(t, spawnPoint(0), spawnPoint(12))
}
