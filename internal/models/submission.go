package models

// AnswerSubmission is one (question number, answer) pair on the grading wire.
type AnswerSubmission struct {
	QuestionNumber int    `json:"questionNumber"`
	AnswerContent  string `json:"answerContent"`
}

// SubmissionRecord is the write-once snapshot sent to the grading API.
type SubmissionRecord struct {
	AttemptID string             `json:"-"`
	Answers   []AnswerSubmission `json:"answers"`
}

type ResponseResult struct {
	QuestionNumber int    `json:"questionNumber"`
	AnswerContent  string `json:"answerContent"`
	CorrectAnswer  string `json:"correctAnswer,omitempty"`
	IsCorrect      bool   `json:"isCorrect"`
}

// GradingResult is the grading API response, stored as latestTestResult.
type GradingResult struct {
	TestID     string           `json:"testId"`
	TotalScore float64          `json:"totalScore"`
	BandScore  float64          `json:"bandScore"`
	Responses  []ResponseResult `json:"responses"`
}
