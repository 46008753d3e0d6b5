package stats

import "github.com/okian/libero/internal/domain/model"

// SkillLine rates one player's evaluated touches of one skill.
//
// PositiveRate and Efficiency are percentages of Touches: each code is
// weighted by PositiveScore and EfficiencyScore, summed, and divided by the
// number of touches.
type SkillLine struct {
	Touches      int                   `json:"touches"`
	Codes        map[model.Outcome]int `json:"codes"`
	Positive     int                   `json:"positive"`
	Score        int                   `json:"score"`
	PositiveRate float64               `json:"positive_rate"`
	Efficiency   float64               `json:"efficiency"`
}

// plus never writes to either operand's Codes, so lines may share maps.
func (l SkillLine) plus(skill model.Skill, o SkillLine) SkillLine {
	codes := make(map[model.Outcome]int, len(l.Codes)+len(o.Codes))
	for c, n := range l.Codes {
		codes[c] += n
	}
	for c, n := range o.Codes {
		codes[c] += n
	}
	return settleSkill(skill, codes)
}

func settleSkill(skill model.Skill, codes map[model.Outcome]int) SkillLine {
	l := SkillLine{Codes: codes}
	for c, n := range codes {
		l.Touches += n
		l.Positive += PositiveScore(skill, c) * n
		l.Score += EfficiencyScore(skill, c) * n
	}
	if l.Touches > 0 {
		l.PositiveRate = float64(l.Positive) / float64(l.Touches) * 100
		l.Efficiency = float64(l.Score) / float64(l.Touches) * 100
	}
	return l
}

// PositiveScore is 1 when o counts as a positive touch of skill, else 0.
func PositiveScore(skill model.Skill, o model.Outcome) int {
	switch o {
	case model.OutcomePerfect, model.OutcomePositive:
		switch skill {
		case model.SkillReception, model.SkillAttack, model.SkillDig, model.SkillServe, model.SkillBlock:
			return 1
		}
	case model.OutcomeOver:
		if skill == model.SkillServe {
			return 1
		}
	}
	return 0
}

// EfficiencyScore weighs o for skill as +1, 0 or -1. Set and fault touches
// always weigh 0.
func EfficiencyScore(skill model.Skill, o model.Outcome) int {
	switch skill {
	case model.SkillReception, model.SkillBlock:
		switch o {
		case model.OutcomePerfect, model.OutcomePositive:
			return 1
		case model.OutcomeError, model.OutcomeOver:
			return -1
		}
	case model.SkillAttack:
		switch o {
		case model.OutcomePerfect:
			return 1
		case model.OutcomeError, model.OutcomeOver:
			return -1
		}
	case model.SkillDig:
		switch o {
		case model.OutcomePerfect, model.OutcomePositive, model.OutcomeOver:
			return 1
		case model.OutcomeError:
			return -1
		}
	case model.SkillServe:
		switch o {
		case model.OutcomePerfect, model.OutcomePositive, model.OutcomeOver, model.OutcomeExclamative:
			return 1
		case model.OutcomeError:
			return -1
		}
	}
	return 0
}

func addSkill(m map[model.PlayerID]map[model.Skill]SkillLine, id model.PlayerID, skill model.Skill, l SkillLine) {
	inner, ok := m[id]
	if !ok {
		inner = map[model.Skill]SkillLine{}
		m[id] = inner
	}
	inner[skill] = inner[skill].plus(skill, l)
}
