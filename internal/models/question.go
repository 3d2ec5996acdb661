package models

import (
	"fmt"
	"sort"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
	TrueFalse      QuestionType = "true_false"
	Completion     QuestionType = "completion"
	FillInBlank    QuestionType = "fill_blank"
	Matching       QuestionType = "matching"
	Essay          QuestionType = "essay"
)

// Question is one assessable item within a Section. Immutable during a session.
type Question struct {
	ID             string       `json:"id"`
	QuestionNumber int          `json:"question_number"`
	Type           QuestionType `json:"type"`
	Content        string       `json:"content,omitempty"`
	Options        []string     `json:"options,omitempty"`
	CorrectAnswer  string       `json:"-"`
}

// SortByNumber orders questions by QuestionNumber.
func SortByNumber(questions []Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].QuestionNumber < questions[j].QuestionNumber
	})
}

// DisplayQuestion is the skill-independent shape used for progress summaries.
type DisplayQuestion struct {
	ID    string       `json:"id"`
	Type  QuestionType `json:"type"`
	Label string       `json:"label"`
}

// SkillQuestion is implemented by ReadingQuestion, ListeningQuestion and WritingTask.
type SkillQuestion interface {
	Skill() Skill
	QuestionID() string
	ToDisplay() DisplayQuestion
}

type ReadingQuestion struct {
	ID      string
	Number  int
	Type    QuestionType
	Passage string
}

func (q ReadingQuestion) Skill() Skill       { return SkillReading }
func (q ReadingQuestion) QuestionID() string { return q.ID }

func (q ReadingQuestion) ToDisplay() DisplayQuestion {
	return DisplayQuestion{ID: q.ID, Type: q.Type, Label: fmt.Sprintf("Question %d", q.Number)}
}

type ListeningQuestion struct {
	ID      string
	Number  int
	Type    QuestionType
	Segment string
}

func (q ListeningQuestion) Skill() Skill       { return SkillListening }
func (q ListeningQuestion) QuestionID() string { return q.ID }

func (q ListeningQuestion) ToDisplay() DisplayQuestion {
	return DisplayQuestion{ID: q.ID, Type: q.Type, Label: fmt.Sprintf("Question %d", q.Number)}
}

type WritingTask struct {
	ID         string
	TaskNumber int
	Title      string
}

func (t WritingTask) Skill() Skill       { return SkillWriting }
func (t WritingTask) QuestionID() string { return t.ID }

func (t WritingTask) ToDisplay() DisplayQuestion {
	label := fmt.Sprintf("Task %d", t.TaskNumber)
	if t.Title != "" {
		label += ": " + t.Title
	}
	return DisplayQuestion{ID: t.ID, Type: Essay, Label: label}
}

// AsSkillQuestion maps a question into the variant matching its section's skill.
// Sections without a known skill are treated as reading.
func AsSkillQuestion(section Section, q Question) SkillQuestion {
	switch section.Skill {
	case SkillWriting:
		return WritingTask{ID: q.ID, TaskNumber: q.QuestionNumber, Title: section.Title}
	case SkillListening:
		return ListeningQuestion{ID: q.ID, Number: q.QuestionNumber, Type: q.Type, Segment: section.Title}
	default:
		return ReadingQuestion{ID: q.ID, Number: q.QuestionNumber, Type: q.Type, Passage: section.Title}
	}
}
