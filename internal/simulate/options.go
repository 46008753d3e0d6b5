package simulate

import (
	"time"

	"github.com/okian/libero/internal/domain/model"
)

// Option applies a configuration option to the simulator.
type Option func(*config)

type config struct {
	playedAt     time.Time
	phases       []model.Phase
	phaseRate    float64
	subRate      float64
	creditRate   float64
	skillRate    float64
	errorRate    float64
	sideOutNotes float64
	serveEdge    float64
	rosterSize   int
}

func defaults() config {
	return config{
		playedAt:     time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC),
		phases:       []model.Phase{"transition", "free-ball", "counter-attack"},
		phaseRate:    0.15,
		subRate:      0.04,
		creditRate:   0.7,
		skillRate:    0.8,
		errorRate:    0.3,
		sideOutNotes: 0.5,
		serveEdge:    0.42,
		rosterSize:   12,
	}
}

// WithPlayedAt sets the match start; event timestamps follow it.
func WithPlayedAt(t time.Time) Option {
	return func(c *config) { c.playedAt = t.UTC() }
}

// WithPhases sets the coach labels sprinkled over rallies. Nil disables them.
func WithPhases(phases ...model.Phase) Option {
	return func(c *config) { c.phases = phases }
}

// WithSubstitutionRate sets the chance of a substitution attempt before a rally.
func WithSubstitutionRate(p float64) Option {
	return func(c *config) {
		if p >= 0 && p <= 1 {
			c.subRate = p
		}
	}
}

// WithSkillRate sets the chance that a credited rally names the deciding
// touch and its evaluation code.
func WithSkillRate(p float64) Option {
	return func(c *config) {
		if p >= 0 && p <= 1 {
			c.skillRate = p
		}
	}
}

// WithServeWinRate sets the chance that the serving team wins a rally.
func WithServeWinRate(p float64) Option {
	return func(c *config) {
		if p > 0 && p < 1 {
			c.serveEdge = p
		}
	}
}

// WithRosterSize sets how many players each team carries. One of them is a
// libero, so at least seven are needed.
func WithRosterSize(n int) Option {
	return func(c *config) {
		if n > model.CourtSize {
			c.rosterSize = n
		}
	}
}
