package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type rosterEntry struct {
	side Side
	idx  int
}

// Match owns identity and the two rosters. A Match is never mutated after
// NewMatch returns, so it may be shared between ledger versions.
type Match struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	PlayedAt time.Time `json:"played_at"`
	Teams    [2]Team   `json:"teams"`

	index map[PlayerID]rosterEntry
}

// NewMatch validates both rosters and builds the player index.
// An empty id is replaced with a fresh UUID.
func NewMatch(id, name string, playedAt time.Time, a, b Team) (*Match, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	m := &Match{
		ID:       id,
		Name:     strings.TrimSpace(name),
		PlayedAt: playedAt.UTC(),
		index:    make(map[PlayerID]rosterEntry, len(a.Players)+len(b.Players)),
	}
	for i, t := range [2]Team{a, b} {
		side := Sides()[i]
		if t.Side != SideNone && t.Side != side {
			return nil, fmt.Errorf("%w: team %q declared side %s in slot %s", ErrInvalidTeam, t.Name, t.Side, side)
		}
		team := Team{Side: side, Name: strings.TrimSpace(t.Name), Players: make([]Player, 0, len(t.Players))}
		if team.Name == "" {
			team.Name = "Team " + side.String()
		}
		for _, p := range t.Players {
			p = p.normalized()
			if err := p.validate(); err != nil {
				return nil, err
			}
			if _, dup := m.index[p.ID]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicatePlayer, p.ID)
			}
			m.index[p.ID] = rosterEntry{side: side, idx: len(team.Players)}
			team.Players = append(team.Players, p)
		}
		if len(team.Players) < CourtSize {
			return nil, fmt.Errorf("%w: team %s has %d players, need at least %d", ErrInvalidTeam, side, len(team.Players), CourtSize)
		}
		m.Teams[i] = team
	}
	return m, nil
}

// Team returns the team playing on side.
func (m *Match) Team(side Side) Team { return m.Teams[side.Index()] }

// Player looks up a rostered player.
func (m *Match) Player(id PlayerID) (Player, bool) {
	e, ok := m.index[id]
	if !ok {
		return Player{}, false
	}
	return m.Teams[e.side.Index()].Players[e.idx], true
}

// SideOf returns the side whose roster holds id.
func (m *Match) SideOf(id PlayerID) (Side, bool) {
	e, ok := m.index[id]
	return e.side, ok
}

// OnRoster reports whether id is rostered for side.
func (m *Match) OnRoster(side Side, id PlayerID) bool {
	s, ok := m.SideOf(id)
	return ok && s == side
}

type matchJSON struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	PlayedAt time.Time `json:"played_at"`
	Teams    [2]Team   `json:"teams"`
}

// UnmarshalJSON decodes and revalidates a match so the player index is rebuilt.
func (m *Match) UnmarshalJSON(b []byte) error {
	var raw matchJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	built, err := NewMatch(raw.ID, raw.Name, raw.PlayedAt, raw.Teams[0], raw.Teams[1])
	if err != nil {
		return err
	}
	*m = *built
	return nil
}
