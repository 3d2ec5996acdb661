package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// SubmissionLog records every dispatch to the grading API.
type SubmissionLog struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	SessionID   string           `json:"session_id" gorm:"not null;index;size:64"`
	LearnerID   string           `json:"learner_id" gorm:"not null;index;size:255"`
	AttemptID   string           `json:"attempt_id" gorm:"not null;index;size:255"`
	Status      SubmissionStatus `json:"status" gorm:"not null;size:20"`
	AnswerCount int              `json:"answer_count"`
	Payload     datatypes.JSON   `json:"payload" gorm:"type:jsonb"`
	Result      datatypes.JSON   `json:"result" gorm:"type:jsonb"`
	BandScore   *float64         `json:"band_score"`
	Error       *string          `json:"error" gorm:"type:text"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (SubmissionLog) TableName() string {
	return "submission_logs"
}
