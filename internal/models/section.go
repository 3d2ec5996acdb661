package models

import "sort"

type Skill string

const (
	SkillReading   Skill = "reading"
	SkillListening Skill = "listening"
	SkillWriting   Skill = "writing"
)

// Section is one timed segment of a test: a reading passage, a listening clip or a writing task.
type Section struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	OrderIndex int        `json:"order_index"`
	TimeLimit  int        `json:"time_limit"` // seconds
	Skill      Skill      `json:"skill"`
	Metadata   string     `json:"metadata,omitempty"`
	Questions  []Question `json:"questions"`
}

// TotalTimeLimit sums the time limits of all sections, in seconds.
func TotalTimeLimit(sections []Section) int {
	total := 0
	for _, s := range sections {
		total += s.TimeLimit
	}
	return total
}

// TotalQuestions counts questions across all sections.
func TotalQuestions(sections []Section) int {
	total := 0
	for _, s := range sections {
		total += len(s.Questions)
	}
	return total
}

// SortByOrder orders sections by OrderIndex, keeping input order for ties.
func SortByOrder(sections []Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].OrderIndex < sections[j].OrderIndex
	})
}
