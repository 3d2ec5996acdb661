package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of session lifecycle event
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventSessionEnded     EventType = "session.ended"
	EventSessionExpired   EventType = "session.expired"
	EventSessionSubmitted EventType = "session.submitted"
)

const (
	eventSource  = "session-service"
	eventVersion = "1.0"
)

// SessionEvent is the envelope for all session lifecycle events
type SessionEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	LearnerID string      `json:"learner_id"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Data      interface{} `json:"data,omitempty"`
}

type SessionClockData struct {
	RemainingSeconds int `json:"remaining_seconds"`
	TotalSeconds     int `json:"total_seconds"`
}

type SessionSubmittedData struct {
	AttemptID   string  `json:"attempt_id"`
	TestID      string  `json:"test_id"`
	BandScore   float64 `json:"band_score"`
	TotalScore  float64 `json:"total_score"`
	AnswerCount int     `json:"answer_count"`
}

func newSessionEvent(eventType EventType, sessionID, learnerID string, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		LearnerID: learnerID,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewSessionStartedEvent(sessionID, learnerID string, remaining, total int) *SessionEvent {
	return newSessionEvent(EventSessionStarted, sessionID, learnerID, SessionClockData{
		RemainingSeconds: remaining,
		TotalSeconds:     total,
	})
}

func NewSessionEndedEvent(sessionID, learnerID string, remaining, total int) *SessionEvent {
	return newSessionEvent(EventSessionEnded, sessionID, learnerID, SessionClockData{
		RemainingSeconds: remaining,
		TotalSeconds:     total,
	})
}

func NewSessionExpiredEvent(sessionID, learnerID string, total int) *SessionEvent {
	return newSessionEvent(EventSessionExpired, sessionID, learnerID, SessionClockData{
		TotalSeconds: total,
	})
}

func NewSessionSubmittedEvent(sessionID, learnerID string, data SessionSubmittedData) *SessionEvent {
	return newSessionEvent(EventSessionSubmitted, sessionID, learnerID, data)
}
