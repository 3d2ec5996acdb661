// Package session owns the timed assessment session state machine:
//
//	not_started -> running -> {ended_timeout | ended_user} -> submitted -> redirected
//
// A session can be started again after it ended, but never after submission.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bandup/session-service/internal/catalog"
	"github.com/bandup/session-service/internal/grading"
	"github.com/bandup/session-service/internal/ledger"
	"github.com/bandup/session-service/internal/models"
	"github.com/bandup/session-service/internal/timer"
)

type State string

const (
	StateNotStarted   State = "not_started"
	StateRunning      State = "running"
	StateEndedTimeout State = "ended_timeout"
	StateEndedUser    State = "ended_user"
	StateSubmitted    State = "submitted"
	StateRedirected   State = "redirected"
)

// Final reports whether no further learner action is accepted.
func (s State) Final() bool {
	return s == StateSubmitted || s == StateRedirected
}

type Session struct {
	ID        string
	LearnerID string
	Mode      catalog.Mode
	CreatedAt time.Time

	sections []models.Section
	clock    *timer.Clock
	answers  *ledger.Ledger

	mu      sync.Mutex
	state   State
	outcome *grading.Outcome
	touched time.Time
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Sections() []models.Section {
	return s.sections
}

// idle reports whether the session has not been used since before cutoff and its clock is not running.
func (s *Session) idle(cutoff time.Time) bool {
	s.mu.Lock()
	touched, state := s.touched, s.state
	s.mu.Unlock()
	return state != StateSubmitted && !s.clock.Running() && touched.Before(cutoff)
}

// expire moves a running session to ended_timeout. It does not submit.
func (s *Session) expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return false
	}
	s.state = StateEndedTimeout
	return true
}

type SectionView struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	OrderIndex   int                  `json:"order_index"`
	TimeLimit    int                  `json:"time_limit"`
	Skill        models.Skill         `json:"skill"`
	Instructions catalog.Instructions `json:"instructions"`
	Questions    []models.Question    `json:"questions"`
}

type View struct {
	ID               string           `json:"id"`
	LearnerID        string           `json:"learner_id"`
	Mode             catalog.Mode     `json:"mode"`
	State            State            `json:"state"`
	Running          bool             `json:"running"`
	RemainingSeconds int              `json:"remaining_seconds"`
	TotalSeconds     int              `json:"total_seconds"`
	Clock            string           `json:"clock"`
	Sections         []SectionView    `json:"sections,omitempty"`
	Progress         ledger.Progress  `json:"progress"`
	Outcome          *grading.Outcome `json:"outcome,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// View renders the session for the learner client. Correct answers never leave the model.
func (s *Session) View(logger *slog.Logger, withSections bool) *View {
	s.mu.Lock()
	state, outcome := s.state, s.outcome
	s.mu.Unlock()

	v := &View{
		ID:               s.ID,
		LearnerID:        s.LearnerID,
		Mode:             s.Mode,
		State:            state,
		Running:          s.clock.Running(),
		RemainingSeconds: s.clock.Remaining(),
		TotalSeconds:     s.clock.Total(),
		Clock:            s.clock.Format(),
		Progress:         ledger.Evaluate(s.sections, s.answers.Snapshot()),
		Outcome:          outcome,
		CreatedAt:        s.CreatedAt,
	}

	if withSections {
		v.Sections = make([]SectionView, 0, len(s.sections))
		for _, sec := range s.sections {
			v.Sections = append(v.Sections, SectionView{
				ID:           sec.ID,
				Title:        sec.Title,
				OrderIndex:   sec.OrderIndex,
				TimeLimit:    sec.TimeLimit,
				Skill:        sec.Skill,
				Instructions: catalog.ParseInstructions(logger, sec.ID, sec.Metadata),
				Questions:    sec.Questions,
			})
		}
	}
	return v
}
