package report

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/libero/internal/domain/model"
)

// ErrInvalidFilter is returned by ParseFilter for malformed query values.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter restricts a report. A nil dimension places no restriction; present
// dimensions are intersected.
type Filter struct {
	Players   []model.PlayerID  `json:"players,omitempty"`
	Types     []model.EventType `json:"types,omitempty"`
	Sets      []int             `json:"sets,omitempty"`
	Phases    []model.Phase     `json:"phases,omitempty"`
	Rotations []int             `json:"rotations,omitempty"`
	Skills    []model.Skill     `json:"skills,omitempty"`
}

// IsZero reports whether the filter accepts every event.
func (f Filter) IsZero() bool {
	return f.Players == nil && f.Types == nil && f.Sets == nil && f.Phases == nil && f.Rotations == nil && f.Skills == nil
}

// Match reports whether e satisfies every present dimension. A player
// dimension matches either the acting or the incoming player.
func (f Filter) Match(e model.Event) bool {
	if f.Players != nil && !slices.Contains(f.Players, e.Player) && (e.Incoming == "" || !slices.Contains(f.Players, e.Incoming)) {
		return false
	}
	if f.Types != nil && !slices.Contains(f.Types, e.Type) {
		return false
	}
	if f.Sets != nil && !slices.Contains(f.Sets, e.Set) {
		return false
	}
	if f.Phases != nil && !slices.Contains(f.Phases, e.Phase) {
		return false
	}
	if f.Rotations != nil && !slices.Contains(f.Rotations, e.Rotation) {
		return false
	}
	if f.Skills != nil && !slices.Contains(f.Skills, e.Skill) {
		return false
	}
	return true
}

// ParseFilter reads player, type, set, phase, rotation and skill from q. Each may
// be repeated or comma separated.
func ParseFilter(q url.Values) (Filter, error) {
	var f Filter
	for _, v := range values(q, "player") {
		f.Players = append(f.Players, model.PlayerID(v))
	}
	for _, v := range values(q, "type") {
		t, err := model.ParseEventType(v)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		f.Types = append(f.Types, t)
	}
	for _, v := range values(q, "phase") {
		f.Phases = append(f.Phases, model.NormalizePhase(v))
	}
	for _, v := range values(q, "skill") {
		sk := model.Skill(strings.ToLower(v))
		if !sk.Valid() {
			return Filter{}, fmt.Errorf("%w: skill=%q", ErrInvalidFilter, v)
		}
		f.Skills = append(f.Skills, sk)
	}
	var err error
	if f.Sets, err = ints(q, "set", 1, 0); err != nil {
		return Filter{}, err
	}
	if f.Rotations, err = ints(q, "rotation", 1, model.CourtSize); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func values(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// ints parses key as integers in [lo, hi]; hi 0 means unbounded.
func ints(q url.Values, key string, lo, hi int) ([]int, error) {
	var out []int
	for _, v := range values(q, key) {
		n, err := strconv.Atoi(v)
		if err != nil || n < lo || (hi > 0 && n > hi) {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, key, v)
		}
		out = append(out, n)
	}
	return out, nil
}
