package grading

import (
	"sort"

	"github.com/bandup/session-service/internal/models"
)

// BuildPayload turns a ledger snapshot into the grading wire answers.
//
// Every question of the catalog is sent in catalog order, with "" for questions that
// were never answered. Ledger entries that do not resolve to a catalog question are
// appended with question number 0, sorted by question id.
// TODO: confirm with the grading API owners whether unresolved entries should be dropped instead of sent as question 0.
func BuildPayload(sections []models.Section, answers map[string]string) []models.AnswerSubmission {
	out := make([]models.AnswerSubmission, 0, models.TotalQuestions(sections))
	known := make(map[string]struct{}, cap(out))

	for _, section := range sections {
		for _, q := range section.Questions {
			known[q.ID] = struct{}{}
			out = append(out, models.AnswerSubmission{
				QuestionNumber: q.QuestionNumber,
				AnswerContent:  answers[q.ID],
			})
		}
	}

	var stray []string
	for id := range answers {
		if _, ok := known[id]; !ok {
			stray = append(stray, id)
		}
	}
	sort.Strings(stray)
	for _, id := range stray {
		out = append(out, models.AnswerSubmission{
			QuestionNumber: 0,
			AnswerContent:  answers[id],
		})
	}
	return out
}
