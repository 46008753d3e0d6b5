package eventfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/scoring"
)

// Roster is the YAML description of a match before play starts.
//
//	id: final-2026
//	name: League final
//	played_at: 2026-05-02T18:00:00Z
//	rules:
//	  set_target: 21
//	teams:
//	  - name: Blue
//	    players:
//	      - {id: b1, name: Ana, number: 1, role: setter}
type Roster struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	PlayedAt time.Time      `yaml:"played_at"`
	Rules    *scoring.Rules `yaml:"rules,omitempty"`
	Teams    []model.Team   `yaml:"teams"`
}

// Match validates the roster and builds the match. Rules missing from the
// document fall back to base field by field.
func (r *Roster) Match(base scoring.Rules) (*model.Match, scoring.Rules, error) {
	if len(r.Teams) != 2 {
		return nil, scoring.Rules{}, fmt.Errorf("%w: roster lists %d teams, want 2", model.ErrInvalidTeam, len(r.Teams))
	}
	rules := base
	if r.Rules != nil {
		rules = mergeRules(base, *r.Rules)
	}
	if err := rules.Validate(); err != nil {
		return nil, scoring.Rules{}, err
	}
	m, err := model.NewMatch(r.ID, r.Name, r.PlayedAt, r.Teams[0], r.Teams[1])
	if err != nil {
		return nil, scoring.Rules{}, err
	}
	return m, rules, nil
}

func mergeRules(base, over scoring.Rules) scoring.Rules {
	if over.SetTarget != 0 {
		base.SetTarget = over.SetTarget
	}
	if over.DecidingSetTarget != 0 {
		base.DecidingSetTarget = over.DecidingSetTarget
	}
	if over.MinMargin != 0 {
		base.MinMargin = over.MinMargin
	}
	if over.SetsToWin != 0 {
		base.SetsToWin = over.SetsToWin
	}
	if over.MaxSubstitutions != 0 {
		base.MaxSubstitutions = over.MaxSubstitutions
	}
	return base
}

// ReadRoster decodes a YAML roster. Unknown keys are rejected.
func ReadRoster(r io.Reader) (*Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out Roster
	if err := dec.Decode(&out); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty roster", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: roster: %w", ErrMalformed, err)
	}
	return &out, nil
}

// ReadRosterFile opens path and reads it with ReadRoster.
func ReadRosterFile(path string) (*Roster, error) {
	fh, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return ReadRoster(fh)
}

// WriteRoster encodes the rosters of m as YAML.
func WriteRoster(w io.Writer, m *model.Match, rules scoring.Rules) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := Roster{
		ID:       m.ID,
		Name:     m.Name,
		PlayedAt: m.PlayedAt,
		Rules:    &rules,
		Teams:    []model.Team{m.Teams[0], m.Teams[1]},
	}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
