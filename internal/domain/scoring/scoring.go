// Package scoring holds the set-closing rule and the predicates that apply it.
package scoring

import (
	"errors"
	"fmt"

	"github.com/okian/libero/internal/domain/model"
)

// Default rule values (indoor volleyball, best of five).
const (
	DefaultSetTarget         = 25
	DefaultDecidingSetTarget = 15
	DefaultMinMargin         = 2
	DefaultSetsToWin         = 3
	DefaultMaxSubstitutions  = 6
)

// ErrInvalidRules is returned by Validate for an unusable rule set.
var ErrInvalidRules = errors.New("invalid scoring rules")

// Option applies a configuration option to Rules.
type Option func(*Rules)

// WithSetTarget sets the points needed to win a regular set.
func WithSetTarget(n int) Option {
	return func(r *Rules) { r.SetTarget = n }
}

// WithDecidingSetTarget sets the points needed to win the deciding set.
func WithDecidingSetTarget(n int) Option {
	return func(r *Rules) { r.DecidingSetTarget = n }
}

// WithMinMargin sets the winning margin.
func WithMinMargin(n int) Option {
	return func(r *Rules) { r.MinMargin = n }
}

// WithSetsToWin sets how many sets decide the match.
func WithSetsToWin(n int) Option {
	return func(r *Rules) { r.SetsToWin = n }
}

// WithMaxSubstitutions sets the per-team, per-set substitution limit.
func WithMaxSubstitutions(n int) Option {
	return func(r *Rules) { r.MaxSubstitutions = n }
}

// Rules is the configured set-closing rule of a match.
type Rules struct {
	SetTarget         int `json:"set_target" yaml:"set_target"`
	DecidingSetTarget int `json:"deciding_set_target" yaml:"deciding_set_target"`
	MinMargin         int `json:"min_margin" yaml:"min_margin"`
	SetsToWin         int `json:"sets_to_win" yaml:"sets_to_win"`
	MaxSubstitutions  int `json:"max_substitutions" yaml:"max_substitutions"`
}

// Default returns the standard rule set.
func Default() Rules {
	return Rules{
		SetTarget:         DefaultSetTarget,
		DecidingSetTarget: DefaultDecidingSetTarget,
		MinMargin:         DefaultMinMargin,
		SetsToWin:         DefaultSetsToWin,
		MaxSubstitutions:  DefaultMaxSubstitutions,
	}
}

// New builds rules from the defaults and validates them.
func New(opts ...Option) (Rules, error) {
	r := Default()
	for _, opt := range opts {
		opt(&r)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

// Validate checks that every value is usable.
func (r Rules) Validate() error {
	switch {
	case r.SetTarget < 1:
		return fmt.Errorf("%w: set target %d", ErrInvalidRules, r.SetTarget)
	case r.DecidingSetTarget < 1:
		return fmt.Errorf("%w: deciding set target %d", ErrInvalidRules, r.DecidingSetTarget)
	case r.MinMargin < 1:
		return fmt.Errorf("%w: min margin %d", ErrInvalidRules, r.MinMargin)
	case r.SetsToWin < 1:
		return fmt.Errorf("%w: sets to win %d", ErrInvalidRules, r.SetsToWin)
	case r.MaxSubstitutions < 0:
		return fmt.Errorf("%w: max substitutions %d", ErrInvalidRules, r.MaxSubstitutions)
	}
	return nil
}

// MaxSets is the number of sets a match lasts at most.
func (r Rules) MaxSets() int { return 2*r.SetsToWin - 1 }

// IsDeciding reports whether set n (1-based) is the deciding set.
func (r Rules) IsDeciding(n int) bool { return n == r.MaxSets() }

// Target returns the points needed to win set n.
func (r Rules) Target(n int) int {
	if r.IsDeciding(n) {
		return r.DecidingSetTarget
	}
	return r.SetTarget
}

// SetWinner returns the side that has closed set n with score, if any.
func (r Rules) SetWinner(n int, score [2]int) (model.Side, bool) {
	target := r.Target(n)
	a, b := score[0], score[1]
	switch {
	case a >= target && a-b >= r.MinMargin:
		return model.SideA, true
	case b >= target && b-a >= r.MinMargin:
		return model.SideB, true
	}
	return model.SideNone, false
}

// MatchWinner returns the side that has won the match given set wins.
func (r Rules) MatchWinner(wins [2]int) (model.Side, bool) {
	switch {
	case wins[0] >= r.SetsToWin:
		return model.SideA, true
	case wins[1] >= r.SetsToWin:
		return model.SideB, true
	}
	return model.SideNone, false
}
