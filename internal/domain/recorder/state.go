package recorder

import "github.com/okian/libero/internal/domain/model"

// Substitution is one accepted change of a court player within a set.
type Substitution struct {
	Out model.PlayerID `json:"out"`
	In  model.PlayerID `json:"in"`
}

// SetState is the derived state of one set.
type SetState struct {
	Number      int          `json:"number"`
	FirstServer model.Side   `json:"first_server"`
	Lineup      model.Lineup `json:"lineup"`
	Score       [2]int       `json:"score"`
	Closed      bool         `json:"closed"`
	Winner      model.Side   `json:"winner,omitempty"`
	Conceded    bool         `json:"conceded,omitempty"`
	FirstSeq    uint64       `json:"first_seq"`
	LastSeq     uint64       `json:"last_seq"`
	// Start and End delimit the set's events in the ledger, half open.
	Start int `json:"start"`
	End   int `json:"end"`
}

// State is everything the recorder derives from the ledger. Values are
// never shared between versions; Apply works on a deep copy.
type State struct {
	Sets         []SetState        `json:"sets"`
	Active       int               `json:"active"` // index into Sets, -1 between sets
	Serving      model.Side        `json:"serving,omitempty"`
	Rotations    [2]model.Rotation `json:"rotations"`
	Phase        model.Phase       `json:"phase,omitempty"`
	JustSidedOut bool              `json:"just_sided_out"`
	Subs         [2][]Substitution `json:"substitutions"`
	Wins         [2]int            `json:"wins"`
	Winner       model.Side        `json:"winner,omitempty"`
	LastSeq      uint64            `json:"last_seq"`
	Len          int               `json:"len"`
}

// Initial is the state of an empty ledger.
func Initial() State { return State{Active: -1} }

// Open reports whether a set is in progress.
func (s State) Open() bool { return s.Active >= 0 }

// MatchOver reports whether a team has won the match.
func (s State) MatchOver() bool { return s.Winner != model.SideNone }

// Current returns the open set, or the last set played.
func (s State) Current() (SetState, bool) {
	if s.Active >= 0 {
		return s.Sets[s.Active], true
	}
	if n := len(s.Sets); n > 0 {
		return s.Sets[n-1], true
	}
	return SetState{}, false
}

// Score returns the score of the current set.
func (s State) Score() [2]int {
	cur, _ := s.Current()
	return cur.Score
}

// Rotation returns side's current rotation.
func (s State) Rotation(side model.Side) model.Rotation {
	return s.Rotations[side.Index()]
}

func (s State) clone() State {
	out := s
	out.Sets = append([]SetState(nil), s.Sets...)
	for i := range s.Subs {
		out.Subs[i] = append([]Substitution(nil), s.Subs[i]...)
	}
	return out
}
