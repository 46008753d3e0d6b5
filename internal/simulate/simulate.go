// Package simulate generates valid, reproducible match ledgers.
package simulate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/recorder"
	"github.com/okian/libero/internal/domain/scoring"
)

const maxEvents = 20000

// ErrRunaway is returned when a simulation does not reach match end.
var ErrRunaway = errors.New("simulation did not finish")

var (
	givenNames = []string{"Ana", "Bruno", "Chiara", "Dmitri", "Elif", "Fabio", "Greta", "Hiro", "Ines", "Jonas", "Kaja", "Luca", "Mira", "Nuno", "Olga", "Pavel"}
	roles      = []model.Role{
		model.RoleSetter, model.RoleOutsideHitter, model.RoleMiddleBlocker, model.RoleOppositeHitter,
		model.RoleOutsideHitter, model.RoleMiddleBlocker, model.RoleLibero, model.RoleSetter,
		model.RoleOutsideHitter, model.RoleMiddleBlocker, model.RoleOppositeHitter, model.RoleOutsideHitter,
	}
)

type touch struct {
	skill   model.Skill
	outcome model.Outcome
}

// Touches that end a rally, as the scout codes them.
var (
	winningTouches = []touch{
		{model.SkillAttack, model.OutcomePerfect},
		{model.SkillAttack, model.OutcomePerfect},
		{model.SkillAttack, model.OutcomePerfect},
		{model.SkillBlock, model.OutcomePerfect},
		{model.SkillServe, model.OutcomePerfect},
	}
	losingTouches = []touch{
		{model.SkillAttack, model.OutcomeError},
		{model.SkillAttack, model.OutcomeOver},
		{model.SkillServe, model.OutcomeError},
		{model.SkillServe, model.OutcomeError},
		{model.SkillReception, model.OutcomeError},
		{model.SkillDig, model.OutcomeError},
		{model.SkillBlock, model.OutcomeOver},
		{model.SkillSet, model.OutcomeError},
		{model.SkillFault, model.OutcomeError},
	}
)

type sim struct {
	cfg    config
	rng    *rand.Rand
	src    *rand.ChaCha8
	ledger *recorder.Ledger
	clock  time.Time
}

// Match plays a whole match under rules. The same seed and options always
// produce the same match and events.
func Match(seed uint64, rules scoring.Rules, opts ...Option) (*recorder.Ledger, error) {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	s := &sim{cfg: cfg, rng: rand.New(src), src: src, clock: cfg.playedAt}

	m, err := s.match(seed)
	if err != nil {
		return nil, err
	}
	s.ledger = recorder.NewLedger(m, rules)

	for !s.ledger.State().MatchOver() {
		if s.ledger.Len() > maxEvents {
			return nil, fmt.Errorf("%w after %d events", ErrRunaway, s.ledger.Len())
		}
		if err := s.playSet(); err != nil {
			return nil, err
		}
	}
	return s.ledger, nil
}

func (s *sim) match(seed uint64) (*model.Match, error) {
	id, err := uuid.NewRandomFromReader(s.src)
	if err != nil {
		return nil, err
	}
	var teams [2]model.Team
	for i, side := range model.Sides() {
		teams[i] = model.Team{Side: side, Name: fmt.Sprintf("Club %s", side)}
		for n := 1; n <= s.cfg.rosterSize; n++ {
			pid, err := uuid.NewRandomFromReader(s.src)
			if err != nil {
				return nil, err
			}
			teams[i].Players = append(teams[i].Players, model.Player{
				ID:     model.PlayerID(pid.String()),
				Name:   fmt.Sprintf("%s %c.", givenNames[s.rng.IntN(len(givenNames))], 'A'+rune(s.rng.IntN(26))),
				Number: n,
				Role:   roles[(n-1)%len(roles)],
			})
		}
	}
	return model.NewMatch(id.String(), fmt.Sprintf("Simulated match %d", seed), s.cfg.playedAt, teams[0], teams[1])
}

func (s *sim) apply(e model.Event) error {
	s.clock = s.clock.Add(time.Duration(8+s.rng.IntN(30)) * time.Second)
	e.Timestamp = s.clock
	next, err := s.ledger.Apply(e)
	if err != nil {
		return err
	}
	s.ledger = next
	return nil
}

func (s *sim) playSet() error {
	st := s.ledger.State()
	n := len(st.Sets) + 1
	rules := s.ledger.Rules()
	server := model.SideA
	if n > 1 && !rules.IsDeciding(n) {
		server = st.Sets[n-2].FirstServer.Opponent()
	} else if s.rng.IntN(2) == 1 {
		server = model.SideB
	}
	lineup := model.Lineup{A: s.lineup(model.SideA), B: s.lineup(model.SideB)}
	if err := s.apply(model.Event{Type: model.EventSetStart, Team: server, Lineup: &lineup}); err != nil {
		return fmt.Errorf("set-start %d: %w", n, err)
	}

	for s.ledger.State().Open() {
		if s.rng.Float64() < s.cfg.subRate {
			s.trySubstitution()
		}
		if err := s.rally(); err != nil {
			return err
		}
	}
	return nil
}

// lineup picks six players, never the libero, in a random order.
func (s *sim) lineup(side model.Side) [model.CourtSize]model.PlayerID {
	var pool []model.PlayerID
	for _, p := range s.ledger.Match().Team(side).Players {
		if p.Role != model.RoleLibero {
			pool = append(pool, p.ID)
		}
	}
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	var six [model.CourtSize]model.PlayerID
	copy(six[:], pool)
	return six
}

func (s *sim) trySubstitution() {
	st := s.ledger.State()
	side := model.Sides()[s.rng.IntN(2)]
	rot := st.Rotation(side)
	var bench []model.PlayerID
	for _, p := range s.ledger.Match().Team(side).Players {
		if !rot.Contains(p.ID) && p.Role != model.RoleLibero {
			bench = append(bench, p.ID)
		}
	}
	if len(bench) == 0 {
		return
	}
	out := rot.Slots[s.rng.IntN(model.CourtSize)]
	in := bench[s.rng.IntN(len(bench))]
	// ineligible pairs are rejected by the recorder and simply not recorded
	_ = s.apply(model.Event{Type: model.EventSubstitution, Team: side, Player: out, Incoming: in})
}

func (s *sim) rally() error {
	st := s.ledger.State()
	winner := st.Serving
	if s.rng.Float64() >= s.cfg.serveEdge {
		winner = st.Serving.Opponent()
	}
	e := model.Event{Type: model.EventPoint, Team: winner}
	if s.rng.Float64() < s.cfg.errorRate {
		e = model.Event{Type: model.EventError, Team: winner.Opponent()}
	}
	if s.rng.Float64() < s.cfg.creditRate {
		e.Player = st.Rotation(e.Team).Slots[s.rng.IntN(model.CourtSize)]
		if s.rng.Float64() < s.cfg.skillRate {
			touches := winningTouches
			if e.Type == model.EventError {
				touches = losingTouches
			}
			t := touches[s.rng.IntN(len(touches))]
			e.Skill, e.Outcome = t.skill, t.outcome
		}
	}
	if len(s.cfg.phases) > 0 && s.rng.Float64() < s.cfg.phaseRate {
		e.Phase = s.cfg.phases[s.rng.IntN(len(s.cfg.phases))]
	}
	if err := s.apply(e); err != nil {
		return fmt.Errorf("rally: %w", err)
	}

	after := s.ledger.State()
	if after.JustSidedOut && s.rng.Float64() < s.cfg.sideOutNotes {
		note := model.Event{Type: model.EventSideOut, Team: after.Serving, Player: after.Rotation(after.Serving).Server()}
		if err := s.apply(note); err != nil {
			return fmt.Errorf("side-out: %w", err)
		}
	}
	return nil
}
