package ledger

import (
	"strings"

	"github.com/bandup/session-service/internal/models"
)

type Progress struct {
	Total      int                      `json:"total"`
	Answered   int                      `json:"answered"`
	Unanswered []models.DisplayQuestion `json:"unanswered"`
	// BySkill splits the counts per skill, for mixed reading/listening/writing tests.
	BySkill map[models.Skill]SkillProgress `json:"by_skill"`
}

type SkillProgress struct {
	Total    int `json:"total"`
	Answered int `json:"answered"`
}

// IsAnswered reports whether an answer counts toward progress. Whitespace-only does not.
func IsAnswered(answer string) bool {
	return strings.TrimSpace(answer) != ""
}

// Evaluate derives progress for the full question set against a ledger snapshot.
// Only answers to questions in sections are counted, so Answered plus the number of
// unanswered questions always equals Total.
func Evaluate(sections []models.Section, answers map[string]string) Progress {
	p := Progress{
		Total:      models.TotalQuestions(sections),
		Unanswered: []models.DisplayQuestion{},
		BySkill:    map[models.Skill]SkillProgress{},
	}

	for _, section := range sections {
		for _, q := range section.Questions {
			sq := models.AsSkillQuestion(section, q)
			skill := p.BySkill[sq.Skill()]
			skill.Total++
			if IsAnswered(answers[sq.QuestionID()]) {
				p.Answered++
				skill.Answered++
			} else {
				p.Unanswered = append(p.Unanswered, sq.ToDisplay())
			}
			p.BySkill[sq.Skill()] = skill
		}
	}
	return p
}
