package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bandup/session-service/internal/catalog"
	"github.com/bandup/session-service/internal/events"
	"github.com/bandup/session-service/internal/grading"
	"github.com/bandup/session-service/internal/ledger"
	"github.com/bandup/session-service/internal/models"
	"github.com/bandup/session-service/internal/timer"
	"github.com/google/uuid"
)

// CatalogLoader is satisfied by *catalog.Loader.
type CatalogLoader interface {
	Load(ctx context.Context, ids []string, mode catalog.Mode) ([]models.Section, error)
	Invalidate(ctx context.Context, ids []string) error
}

// Submitter is satisfied by *grading.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, sub grading.Submission) (*grading.Outcome, error)
}

type Manager struct {
	loader    CatalogLoader
	submitter Submitter
	publisher events.EventPublisher
	logger    *slog.Logger
	ticker    timer.TickerFactory
	now       func() time.Time
	idleTTL   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

type ManagerConfig struct {
	Loader    CatalogLoader
	Submitter Submitter
	Publisher events.EventPublisher
	Logger    *slog.Logger
	// Ticker overrides the one-second heartbeat; nil uses a real ticker.
	Ticker timer.TickerFactory
	// IdleTTL is how long a session whose clock is not running is kept after its last use.
	IdleTTL time.Duration
	// Now overrides the wall clock used for idle tracking.
	Now func() time.Time
}

const DefaultIdleTTL = 30 * time.Minute

func NewManager(cfg ManagerConfig) *Manager {
	ticker := cfg.Ticker
	if ticker == nil {
		ticker = timer.NewStdTicker
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopEventPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Manager{
		loader:    cfg.Loader,
		submitter: cfg.Submitter,
		publisher: publisher,
		logger:    cfg.Logger,
		ticker:    ticker,
		now:       now,
		idleTTL:   idleTTL,
		sessions:  make(map[string]*Session),
	}
}

// RefreshCatalog drops cached sections so the next Create fetches them from the catalog again.
func (m *Manager) RefreshCatalog(ctx context.Context, sectionIDs []string) error {
	if err := m.loader.Invalidate(ctx, sectionIDs); err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}
	return nil
}

// Create loads the catalog and opens an idle session whose clock is seeded with the
// sum of all section time limits.
func (m *Manager) Create(ctx context.Context, learnerID string, sectionIDs []string, mode catalog.Mode) (*Session, error) {
	sections, err := m.loader.Load(ctx, sectionIDs, mode)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		LearnerID: learnerID,
		Mode:      mode,
		CreatedAt: m.now(),
		sections:  sections,
		answers:   ledger.New(),
		state:     StateNotStarted,
	}
	s.touched = s.CreatedAt
	s.clock = timer.New(
		timer.WithTicker(m.ticker),
		timer.OnExpire(func() { m.handleExpire(s) }),
	)
	s.clock.Seed(models.TotalTimeLimit(sections))

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("Session created",
		"session_id", s.ID,
		"learner_id", learnerID,
		"sections", len(sections),
		"total_seconds", s.clock.Total())

	return s, nil
}

// Get returns a session owned by learnerID.
func (m *Manager) Get(id, learnerID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.LearnerID != learnerID {
		return nil, ErrSessionAccessDenied
	}
	return s, nil
}

func (m *Manager) Start(ctx context.Context, id, learnerID string) (*Session, error) {
	s, err := m.Get(id, learnerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	switch {
	case s.state.Final():
		s.mu.Unlock()
		return nil, ErrSessionSubmitted
	case s.state == StateRunning:
		s.mu.Unlock()
		return nil, ErrSessionRunning
	}
	if err := s.clock.Start(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to start clock: %w", err)
	}
	s.state = StateRunning
	s.touched = m.now()
	s.mu.Unlock()

	m.logger.Info("Session started", "session_id", id, "remaining", s.clock.Remaining())
	m.publish(ctx, events.NewSessionStartedEvent(id, learnerID, s.clock.Remaining(), s.clock.Total()))
	return s, nil
}

func (m *Manager) End(ctx context.Context, id, learnerID string) (*Session, error) {
	s, err := m.Get(id, learnerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil, ErrSessionNotRunning
	}
	s.clock.Stop()
	s.state = StateEndedUser
	s.touched = m.now()
	s.mu.Unlock()

	m.logger.Info("Session ended by learner", "session_id", id, "remaining", s.clock.Remaining())
	m.publish(ctx, events.NewSessionEndedEvent(id, learnerID, s.clock.Remaining(), s.clock.Total()))
	return s, nil
}

// SetAnswer records the learner's current answer for a question, replacing any previous one.
func (m *Manager) SetAnswer(id, learnerID, questionID, answer string) error {
	s, err := m.Get(id, learnerID)
	if err != nil {
		return err
	}
	questionID = strings.TrimSpace(questionID)
	if questionID == "" {
		return ErrNoQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Final() {
		return ErrSessionSubmitted
	}
	if !hasQuestion(s.sections, questionID) {
		m.logger.Warn("Answer recorded for unknown question",
			"session_id", id,
			"question_id", questionID)
	}
	s.answers.Set(questionID, answer)
	s.touched = m.now()
	return nil
}

func (m *Manager) Progress(id, learnerID string) (ledger.Progress, error) {
	s, err := m.Get(id, learnerID)
	if err != nil {
		return ledger.Progress{}, err
	}
	return ledger.Evaluate(s.sections, s.answers.Snapshot()), nil
}

// Submit dispatches the ledger once. On failure the session's clock and answers are
// left as they were so the learner can submit again.
func (m *Manager) Submit(ctx context.Context, id, learnerID string) (*grading.Outcome, error) {
	s, err := m.Get(id, learnerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	switch s.state {
	case StateSubmitted:
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case StateRedirected:
		s.mu.Unlock()
		return nil, ErrSessionSubmitted
	}
	prev := s.state
	s.state = StateSubmitted
	s.touched = m.now()
	s.mu.Unlock()

	outcome, err := m.submitter.Submit(ctx, grading.Submission{
		SessionID: id,
		LearnerID: learnerID,
		Sections:  s.sections,
		Answers:   s.answers.Snapshot(),
	})
	if err != nil {
		s.mu.Lock()
		// expiry is skipped while the request is in flight, so it is settled here
		expired := prev == StateRunning && !s.clock.Running()
		if expired {
			prev = StateEndedTimeout
		}
		s.state = prev
		s.touched = m.now()
		s.mu.Unlock()

		if expired {
			m.logger.Info("Session time expired during submission", "session_id", id)
			m.publish(ctx, events.NewSessionExpiredEvent(id, learnerID, s.clock.Total()))
		}
		return nil, err
	}

	// the learner's answers are not kept once the attempt is graded
	kept := *outcome
	kept.Record = models.SubmissionRecord{}

	s.mu.Lock()
	s.clock.Stop()
	s.state = StateRedirected
	s.outcome = &kept
	s.answers.Reset()
	s.touched = m.now()
	s.mu.Unlock()

	m.publish(ctx, events.NewSessionSubmittedEvent(id, learnerID, events.SessionSubmittedData{
		AttemptID:   outcome.Record.AttemptID,
		TestID:      outcome.Result.TestID,
		BandScore:   outcome.Result.BandScore,
		TotalScore:  outcome.Result.TotalScore,
		AnswerCount: len(outcome.Record.Answers),
	}))
	return outcome, nil
}

// Close tears a session down: its clock stops and it is forgotten.
func (m *Manager) Close(id, learnerID string) error {
	s, err := m.Get(id, learnerID)
	if err != nil {
		return err
	}
	s.clock.Close()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Info("Session closed", "session_id", id, "state", s.State())
	return nil
}

// Shutdown stops every session clock.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.clock.Close()
		delete(m.sessions, id)
	}
}

// Sweep forgets sessions that have been idle for longer than the idle TTL. Sessions with
// a running clock or a submission in flight are kept. It returns the number removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var removed []*Session
	for id, s := range m.sessions {
		if s.idle(cutoff) {
			delete(m.sessions, id)
			removed = append(removed, s)
		}
	}
	m.mu.Unlock()

	for _, s := range removed {
		s.clock.Close()
		m.logger.Debug("Session evicted", "session_id", s.ID, "state", s.State())
	}
	if len(removed) > 0 {
		m.logger.Info("Idle sessions evicted", "count", len(removed))
	}
	return len(removed)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) handleExpire(s *Session) {
	if !s.expire() {
		return
	}
	m.logger.Info("Session time expired", "session_id", s.ID)
	m.publish(context.Background(), events.NewSessionExpiredEvent(s.ID, s.LearnerID, s.clock.Total()))
}

func (m *Manager) publish(ctx context.Context, event *events.SessionEvent) {
	if err := m.publisher.PublishSessionEvent(ctx, event); err != nil {
		m.logger.Warn("Failed to publish session event",
			"event_type", event.Type,
			"session_id", event.SessionID,
			"error", err)
	}
}

func hasQuestion(sections []models.Section, questionID string) bool {
	for _, sec := range sections {
		for _, q := range sec.Questions {
			if q.ID == questionID {
				return true
			}
		}
	}
	return false
}
