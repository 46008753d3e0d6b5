package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for model validation.
var (
	ErrInvalidValue    = errors.New("invalid value")
	ErrInvalidPlayer   = errors.New("invalid player")
	ErrDuplicatePlayer = errors.New("duplicate player")
	ErrInvalidTeam     = errors.New("invalid team")
)

// Side identifies one of the two teams of a match.
type Side uint8

// Sides. SideNone is the zero value and never a valid team.
const (
	SideNone Side = iota
	SideA
	SideB
)

// Sides returns both team sides.
func Sides() [2]Side { return [2]Side{SideA, SideB} }

// Valid reports whether s names a team.
func (s Side) Valid() bool { return s == SideA || s == SideB }

// Index maps a valid side to 0 or 1.
func (s Side) Index() int {
	if s == SideB {
		return 1
	}
	return 0
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	}
	return SideNone
}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	}
	return ""
}

// ParseSide parses "A" or "B" (case-insensitive). Empty input yields SideNone.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return SideNone, nil
	case "A":
		return SideA, nil
	case "B":
		return SideB, nil
	}
	return SideNone, fmt.Errorf("%w: side %q", ErrInvalidValue, s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
