// Package report answers filtered queries over a captured ledger version.
package report

import (
	"context"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/stats"
)

// SetScore is one row of the set-by-set summary.
type SetScore struct {
	Number   int        `json:"number"`
	Score    [2]int     `json:"score"`
	Closed   bool       `json:"closed"`
	Winner   model.Side `json:"winner,omitempty"`
	Conceded bool       `json:"conceded,omitempty"`
}

// Summary is the match-level outcome at the captured version.
type Summary struct {
	Teams   [2]string  `json:"teams"`
	Wins    [2]int     `json:"wins"`
	Winner  model.Side `json:"winner,omitempty"`
	Serving model.Side `json:"serving,omitempty"`
	Events  int        `json:"events"`
}

// FilteredReport is the output handed to presentation layers.
type FilteredReport struct {
	MatchID string        `json:"match_id"`
	Filter  Filter        `json:"filter"`
	Summary Summary       `json:"summary"`
	Sets    []SetScore    `json:"sets"`
	Events  []model.Event `json:"events"`
	Stats   stats.Report  `json:"stats"`
}

// Select returns the events of l that f accepts, in ledger order.
func Select(ctx context.Context, l *recorder.Ledger, f Filter) ([]model.Event, error) {
	all := l.Events()
	if f.IsZero() {
		return all, nil
	}
	out := make([]model.Event, 0)
	for _, e := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Aggregate computes statistics over l, restricted by f when it is non-nil.
// The only error is ctx's.
func Aggregate(ctx context.Context, l *recorder.Ledger, f *Filter) (stats.Report, error) {
	var filter Filter
	if f != nil {
		filter = *f
	}
	events, err := Select(ctx, l, filter)
	if err != nil {
		return stats.Report{}, err
	}
	return stats.AggregateContext(ctx, events)
}

// Query filters l and recomputes statistics over the filtered events only.
// Set scores and the summary always describe the whole captured ledger. An
// empty selection is a valid report. The only error is ctx's.
func Query(ctx context.Context, l *recorder.Ledger, f Filter) (FilteredReport, error) {
	events, err := Select(ctx, l, f)
	if err != nil {
		return FilteredReport{}, err
	}
	st, err := stats.AggregateContext(ctx, events)
	if err != nil {
		return FilteredReport{}, err
	}
	return FilteredReport{
		MatchID: l.Match().ID,
		Filter:  f,
		Summary: Summarize(l),
		Sets:    SetScores(l),
		Events:  events,
		Stats:   st,
	}, nil
}

// SetScores lists every set started in l.
func SetScores(l *recorder.Ledger) []SetScore {
	sets := l.Sets()
	out := make([]SetScore, len(sets))
	for i, s := range sets {
		out[i] = SetScore{Number: s.Number, Score: s.Score, Closed: s.Closed, Winner: s.Winner, Conceded: s.Conceded}
	}
	return out
}

// Summarize reports the match outcome at the version l.
func Summarize(l *recorder.Ledger) Summary {
	st := l.State()
	m := l.Match()
	return Summary{
		Teams:   [2]string{m.Teams[0].Name, m.Teams[1].Name},
		Wins:    st.Wins,
		Winner:  st.Winner,
		Serving: st.Serving,
		Events:  l.Len(),
	}
}
