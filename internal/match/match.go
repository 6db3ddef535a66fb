// Package match drives the Lobby -> Active -> Ended lifecycle of one match and
// derives its final ranking.
package match

import (
	"errors"
	"fmt"

	"github.com/OCAP2/arena/pkg/core"
)

// MinPlayers is the smallest roster that can start a match.
const MinPlayers = 2

var (
	ErrNotLobby         = errors.New("match is not in the lobby")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrFrozen           = errors.New("match has ended")
)

// Machine tracks match-level state. Player state lives in the arena; the
// machine only sees it when a transition needs it. Owned by the session tick
// loop.
type Machine struct {
	code     string
	settings core.MatchSettings
	timeLeft int
	status   core.MatchStatus
	result   *core.MatchResult
}

// NewMachine creates a machine in the lobby.
func NewMachine(code string) *Machine {
	return &Machine{code: code, status: core.StatusLobby}
}

func (m *Machine) Code() string                 { return m.code }
func (m *Machine) Status() core.MatchStatus     { return m.status }
func (m *Machine) Settings() core.MatchSettings { return m.settings }
func (m *Machine) TimeLeft() int                { return m.timeLeft }

// Active reports whether gameplay messages may mutate state.
func (m *Machine) Active() bool { return m.status == core.StatusActive }

// Frozen reports whether the match has ended and can no longer change.
func (m *Machine) Frozen() bool { return m.status == core.StatusEnded }

// Result returns the final result once the match has ended.
func (m *Machine) Result() (core.MatchResult, bool) {
	if m.result == nil {
		return core.MatchResult{}, false
	}
	return *m.result, true
}

// Start moves the lobby to Active with the relay-supplied settings.
func (m *Machine) Start(settings core.MatchSettings, players int) error {
	if m.status != core.StatusLobby {
		return fmt.Errorf("start %s: %w", m.code, ErrNotLobby)
	}
	if players < MinPlayers {
		return fmt.Errorf("start %s with %d players: %w", m.code, players, ErrNotEnoughPlayers)
	}
	if err := settings.Complete(); err != nil {
		return fmt.Errorf("start %s: %w", m.code, err)
	}
	m.settings = settings
	m.timeLeft = settings.DurationSeconds
	m.status = core.StatusActive
	return nil
}

// Sync adopts a relay snapshot. An Active snapshot seen from the lobby starts
// the match; an Ended snapshot ends it. Nothing changes once frozen.
func (m *Machine) Sync(state core.MatchState) error {
	if m.Frozen() {
		return fmt.Errorf("sync %s: %w", m.code, ErrFrozen)
	}
	if state.Code != "" && state.Code != m.code {
		return fmt.Errorf("sync: snapshot for %q, expected %q", state.Code, m.code)
	}
	switch state.Status {
	case core.StatusActive:
		if m.status == core.StatusLobby {
			if err := m.Start(state.Settings, len(state.Players)); err != nil {
				return err
			}
		}
		m.setTimeLeft(state.TimeLeft)
	case core.StatusEnded:
		if state.Result != nil {
			m.freeze(*state.Result)
		} else {
			m.End(state.Players)
		}
	default:
		if state.Settings.DurationSeconds > 0 {
			m.settings = state.Settings
		}
	}
	return nil
}

// Timer applies a countdown tick. Reaching zero ends the match with players;
// the returned bool reports that transition.
func (m *Machine) Timer(timeLeft int, players []core.PlayerState) (core.MatchResult, bool) {
	if !m.Active() {
		return core.MatchResult{}, false
	}
	m.setTimeLeft(timeLeft)
	if m.timeLeft > 0 {
		return core.MatchResult{}, false
	}
	return m.End(players)
}

// End freezes the match and ranks players. Only the first call has an effect;
// later calls return the stored result and false.
func (m *Machine) End(players []core.PlayerState) (core.MatchResult, bool) {
	if m.Frozen() {
		res, _ := m.Result()
		return res, false
	}
	res := Rank(players)
	m.freeze(res)
	return res, true
}

// State assembles a full snapshot with the given players.
func (m *Machine) State(players []core.PlayerState) core.MatchState {
	st := core.MatchState{
		Code:     m.code,
		Settings: m.settings,
		Players:  players,
		TimeLeft: m.timeLeft,
		Status:   m.status,
	}
	if m.result != nil {
		res := *m.result
		st.Result = &res
	}
	return st
}

func (m *Machine) freeze(res core.MatchResult) {
	m.result = &res
	m.timeLeft = 0
	m.status = core.StatusEnded
}

func (m *Machine) setTimeLeft(v int) {
	if v < 0 {
		v = 0
	}
	m.timeLeft = v
}
