package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PlayerID identifies a player across both rosters of a match.
type PlayerID string

// Role is the playing position of a rostered player.
type Role string

// Roles.
const (
	RoleSetter         Role = "setter"
	RoleOutsideHitter  Role = "outside-hitter"
	RoleOppositeHitter Role = "opposite-hitter"
	RoleMiddleBlocker  Role = "middle-blocker"
	RoleLibero         Role = "libero"
)

// Valid reports whether r is empty or a known role.
func (r Role) Valid() bool {
	switch r {
	case "", RoleSetter, RoleOutsideHitter, RoleOppositeHitter, RoleMiddleBlocker, RoleLibero:
		return true
	}
	return false
}

// Player is an immutable roster entry.
type Player struct {
	ID     PlayerID `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Number int      `json:"number,omitempty" yaml:"number,omitempty"`
	Role   Role     `json:"role,omitempty" yaml:"role,omitempty"`
}

func (p Player) normalized() Player {
	p.ID = PlayerID(strings.TrimSpace(string(p.ID)))
	p.Name = strings.TrimSpace(norm.NFC.String(p.Name))
	p.Role = Role(strings.ToLower(strings.TrimSpace(string(p.Role))))
	return p
}

func (p Player) validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id (name %q)", ErrInvalidPlayer, p.Name)
	}
	if !p.Role.Valid() {
		return fmt.Errorf("%w: %s has unknown role %q", ErrInvalidPlayer, p.ID, p.Role)
	}
	if p.Number < 0 {
		return fmt.Errorf("%w: %s has negative number", ErrInvalidPlayer, p.ID)
	}
	return nil
}

// Team is one side of a match with its roster.
type Team struct {
	Side    Side     `json:"side" yaml:"side"`
	Name    string   `json:"name" yaml:"name"`
	Players []Player `json:"players" yaml:"players"`
}
