package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bandup/session-service/internal/catalog"
	"github.com/bandup/session-service/internal/events"
	"github.com/bandup/session-service/internal/grading"
	"github.com/bandup/session-service/internal/models"
	"github.com/bandup/session-service/internal/store"
	"github.com/bandup/session-service/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const learner = "learner-1"

type stubLoader struct {
	sections    []models.Section
	err         error
	invalidated []string
}

func (l *stubLoader) Invalidate(ctx context.Context, ids []string) error {
	l.invalidated = append(l.invalidated, ids...)
	return l.err
}

func (l *stubLoader) Load(ctx context.Context, ids []string, mode catalog.Mode) ([]models.Section, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.sections, nil
}

type stubGrader struct {
	calls  atomic.Int32
	err    error
	result *models.GradingResult
	got    models.SubmissionRecord
	// block, when set, holds the request until it is closed
	block chan struct{}
}

func (g *stubGrader) SubmitAnswers(ctx context.Context, record models.SubmissionRecord) (*models.GradingResult, error) {
	g.calls.Add(1)
	g.got = record
	if g.block != nil {
		<-g.block
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

type tickers struct {
	mu  sync.Mutex
	all []*fakeTicker
}

func (t *tickers) factory(time.Duration) timer.Ticker {
	t.mu.Lock()
	defer t.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time)}
	t.all = append(t.all, ft)
	return ft
}

func (t *tickers) beat(n int) {
	t.mu.Lock()
	ft := t.all[len(t.all)-1]
	t.mu.Unlock()
	for i := 0; i < n; i++ {
		ft.ch <- time.Now()
	}
}

type wallClock struct {
	mu sync.Mutex
	t  time.Time
}

func (w *wallClock) now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t
}

func (w *wallClock) advance(d time.Duration) {
	w.mu.Lock()
	w.t = w.t.Add(d)
	w.mu.Unlock()
}

type fixture struct {
	manager   *Manager
	grader    *stubGrader
	state     store.StateStore
	publisher *events.MockEventPublisher
	tickers   *tickers
	wall      *wallClock
	loader    *stubLoader
}

func twoSections() []models.Section {
	return []models.Section{
		{ID: "s1", Title: "Reading 1", OrderIndex: 1, TimeLimit: 600, Skill: models.SkillReading, Questions: []models.Question{
			{ID: "q1", QuestionNumber: 1, Type: models.MultipleChoice},
			{ID: "q2", QuestionNumber: 2, Type: models.ShortAnswer},
		}},
		{ID: "s2", Title: "Reading 2", OrderIndex: 2, TimeLimit: 900, Skill: models.SkillReading, Questions: []models.Question{
			{ID: "q3", QuestionNumber: 3, Type: models.TrueFalse},
		}},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := store.NewMemoryStore()
	grader := &stubGrader{result: &models.GradingResult{TestID: "t-9", TotalScore: 30, BandScore: 7.0}}
	publisher := events.NewMockEventPublisher(logger)
	tk := &tickers{}
	wall := &wallClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	loader := &stubLoader{sections: twoSections()}

	m := NewManager(ManagerConfig{
		Loader: loader,
		Submitter: grading.NewDispatcher(grading.DispatcherConfig{
			API:    grader,
			State:  state,
			Logger: logger,
		}),
		Publisher: publisher,
		Logger:    logger,
		Ticker:    tk.factory,
		IdleTTL:   30 * time.Minute,
		Now:       wall.now,
	})
	t.Cleanup(m.Shutdown)

	return &fixture{manager: m, grader: grader, state: state, publisher: publisher, tickers: tk, wall: wall, loader: loader}
}

func (f *fixture) create(t *testing.T) *Session {
	t.Helper()
	s, err := f.manager.Create(context.Background(), learner, []string{"s1", "s2"}, catalog.ModeFull)
	require.NoError(t, err)
	return s
}

func eventTypes(p *events.MockEventPublisher) []events.EventType {
	var types []events.EventType
	for _, e := range p.GetPublishedEvents() {
		types = append(types, e.Type)
	}
	return types
}

func TestManager_CreateSeedsClockFromSections(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	assert.Equal(t, StateNotStarted, s.State())
	v := s.View(f.manager.logger, true)
	assert.Equal(t, "00:25:00", v.Clock)
	assert.Equal(t, 1500, v.TotalSeconds)
	assert.False(t, v.Running)
	assert.Len(t, v.Sections, 2)
	assert.Equal(t, 3, v.Progress.Total)
}

func TestManager_CreateFailsWhenCatalogFails(t *testing.T) {
	f := newFixture(t)
	f.manager.loader = &stubLoader{err: catalog.ErrCatalogUnavailable}

	_, err := f.manager.Create(context.Background(), learner, []string{"s1"}, catalog.ModeFull)
	assert.True(t, IsUpstream(err))
	assert.Equal(t, 0, f.manager.Len())
}

func TestManager_RefreshCatalogInvalidatesSections(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.manager.RefreshCatalog(context.Background(), []string{"s1", "s2"}))
	assert.Equal(t, []string{"s1", "s2"}, f.loader.invalidated)

	f.loader.err = errors.New("redis down")
	assert.Error(t, f.manager.RefreshCatalog(context.Background(), []string{"s1"}))
}

func TestManager_StartWithoutTimeBudgetIsConflict(t *testing.T) {
	f := newFixture(t)
	f.loader.sections = []models.Section{{ID: "s1", Questions: []models.Question{{ID: "q1", QuestionNumber: 1}}}}
	s := f.create(t)

	_, err := f.manager.Start(context.Background(), s.ID, learner)
	require.Error(t, err)
	assert.ErrorIs(t, err, timer.ErrNoTimeBudget)
	assert.True(t, IsConflict(err))
	assert.Equal(t, StateNotStarted, s.State())
}

func TestManager_GetChecksOwnership(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	_, err := f.manager.Get(s.ID, "someone-else")
	assert.ErrorIs(t, err, ErrSessionAccessDenied)

	_, err = f.manager.Get("missing", learner)
	assert.True(t, IsNotFound(err))
}

func TestManager_TimerScenario(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()

	_, err := f.manager.Start(ctx, s.ID, learner)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, s.State())

	_, err = f.manager.Start(ctx, s.ID, learner)
	assert.ErrorIs(t, err, ErrSessionRunning)

	f.tickers.beat(5)
	assert.Eventually(t, func() bool { return s.clock.Format() == "00:24:55" }, time.Second, 5*time.Millisecond)

	f.tickers.beat(1495)
	assert.Eventually(t, func() bool { return s.State() == StateEndedTimeout }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "00:00:00", s.clock.Format())
	assert.False(t, s.clock.Running())
	assert.Equal(t, int32(0), f.grader.calls.Load(), "expiry must not submit")
	assert.Eventually(t, func() bool {
		types := eventTypes(f.publisher)
		return len(types) == 2 && types[1] == events.EventSessionExpired
	}, time.Second, 5*time.Millisecond)
}

func TestManager_EndAndRestartReseedsFromTotal(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()

	_, err := f.manager.End(ctx, s.ID, learner)
	assert.ErrorIs(t, err, ErrSessionNotRunning)

	_, err = f.manager.Start(ctx, s.ID, learner)
	require.NoError(t, err)
	f.tickers.beat(10)
	assert.Eventually(t, func() bool { return s.clock.Remaining() == 1490 }, time.Second, 5*time.Millisecond)

	_, err = f.manager.End(ctx, s.ID, learner)
	require.NoError(t, err)
	assert.Equal(t, StateEndedUser, s.State())
	assert.Equal(t, 1490, s.clock.Remaining())

	_, err = f.manager.Start(ctx, s.ID, learner)
	require.NoError(t, err)
	assert.Equal(t, 1500, s.clock.Remaining())
}

func TestManager_SetAnswerAndProgress(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q1", "B"))
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q1", "A"))
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q2", "   "))
	assert.ErrorIs(t, f.manager.SetAnswer(s.ID, learner, " ", "x"), ErrNoQuestion)

	answer, ok := s.answers.Get("q1")
	require.True(t, ok)
	assert.Equal(t, "A", answer)

	p, err := f.manager.Progress(s.ID, learner)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Answered)
	require.Len(t, p.Unanswered, 2)
	assert.Equal(t, "q2", p.Unanswered[0].ID)
	assert.Equal(t, p.Total, p.Answered+len(p.Unanswered))
}

func TestManager_SubmitWithoutAttemptMakesNoCall(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()

	_, err := f.manager.Start(ctx, s.ID, learner)
	require.NoError(t, err)
	f.tickers.beat(3)
	assert.Eventually(t, func() bool { return s.clock.Remaining() == 1497 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q1", "A"))

	_, err = f.manager.Submit(ctx, s.ID, learner)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, int32(0), f.grader.calls.Load())

	assert.Equal(t, StateRunning, s.State())
	assert.True(t, s.clock.Running())
	assert.Equal(t, 1497, s.clock.Remaining())
	assert.Equal(t, map[string]string{"q1": "A"}, s.answers.Snapshot())
}

func TestManager_SubmitSendsPayloadAndRedirects(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()
	require.NoError(t, f.state.Set(ctx, learner, store.KeyCurrentAttemptID, "attempt-7"))

	_, err := f.manager.Start(ctx, s.ID, learner)
	require.NoError(t, err)
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q1", "A"))
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q2", ""))

	outcome, err := f.manager.Submit(ctx, s.ID, learner)
	require.NoError(t, err)
	assert.Equal(t, "/results/t-9", outcome.Redirect)
	assert.Equal(t, StateRedirected, s.State())
	assert.False(t, s.clock.Running())

	assert.Equal(t, "attempt-7", f.grader.got.AttemptID)
	assert.Equal(t, []models.AnswerSubmission{
		{QuestionNumber: 1, AnswerContent: "A"},
		{QuestionNumber: 2, AnswerContent: ""},
		{QuestionNumber: 3, AnswerContent: ""},
	}, f.grader.got.Answers)

	stored, err := f.state.Get(ctx, learner, store.KeyLatestTestResult)
	require.NoError(t, err)
	assert.Contains(t, stored, "t-9")

	assert.ErrorIs(t, f.manager.SetAnswer(s.ID, learner, "q1", "B"), ErrSessionSubmitted)
	_, err = f.manager.Start(ctx, s.ID, learner)
	assert.ErrorIs(t, err, ErrSessionSubmitted)
	_, err = f.manager.Submit(ctx, s.ID, learner)
	assert.ErrorIs(t, err, ErrSessionSubmitted)

	assert.Equal(t, []events.EventType{events.EventSessionStarted, events.EventSessionSubmitted}, eventTypes(f.publisher))

	require.Len(t, outcome.Record.Answers, 3)
	assert.Equal(t, 0, s.answers.Len())
	assert.Empty(t, s.outcome.Record.Answers)
	assert.Empty(t, s.outcome.Record.AttemptID)
	assert.Equal(t, "t-9", s.View(f.manager.logger, false).Outcome.Result.TestID)
}

func TestManager_FailedSubmitCanBeRetried(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()
	require.NoError(t, f.state.Set(ctx, learner, store.KeyCurrentAttemptID, "attempt-7"))
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q1", "A"))

	f.grader.err = errors.New("connection reset")
	_, err := f.manager.Submit(ctx, s.ID, learner)
	assert.True(t, IsUpstream(err))
	assert.Equal(t, StateNotStarted, s.State())
	assert.Equal(t, 1, s.answers.Len())

	f.grader.err = nil
	_, err = f.manager.Submit(ctx, s.ID, learner)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.grader.calls.Load())
}

func TestManager_ExpiryDuringFailedSubmit(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()
	require.NoError(t, f.state.Set(ctx, learner, store.KeyCurrentAttemptID, "attempt-7"))
	_, err := f.manager.Start(ctx, s.ID, learner)
	require.NoError(t, err)
	require.NoError(t, f.manager.SetAnswer(s.ID, learner, "q1", "A"))

	f.grader.err = errors.New("connection reset")
	f.grader.block = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.manager.Submit(ctx, s.ID, learner)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.grader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.tickers.beat(1500)
	require.Eventually(t, func() bool { return !s.clock.Running() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateSubmitted, s.State())

	close(f.grader.block)
	assert.True(t, IsUpstream(<-done))
	assert.Equal(t, StateEndedTimeout, s.State())
	assert.Equal(t, []events.EventType{events.EventSessionStarted, events.EventSessionExpired}, eventTypes(f.publisher))
	assert.Equal(t, map[string]string{"q1": "A"}, s.answers.Snapshot())
}

func TestManager_RejectsConcurrentSubmit(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)
	ctx := context.Background()
	require.NoError(t, f.state.Set(ctx, learner, store.KeyCurrentAttemptID, "attempt-7"))
	f.grader.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.Submit(ctx, s.ID, learner)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.grader.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := f.manager.Submit(ctx, s.ID, learner)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(f.grader.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), f.grader.calls.Load())
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t)
	s := f.create(t)

	_, err := f.manager.Start(context.Background(), s.ID, learner)
	require.NoError(t, err)
	require.NoError(t, f.manager.Close(s.ID, learner))

	assert.False(t, s.clock.Running())
	assert.Equal(t, 0, f.manager.Len())
	_, err = f.manager.Get(s.ID, learner)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_SweepEvictsIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.state.Set(ctx, learner, store.KeyCurrentAttemptID, "attempt-7"))

	submitted := f.create(t)
	_, err := f.manager.Submit(ctx, submitted.ID, learner)
	require.NoError(t, err)
	abandoned := f.create(t)
	running := f.create(t)
	_, err = f.manager.Start(ctx, running.ID, learner)
	require.NoError(t, err)

	assert.Equal(t, 0, f.manager.Sweep())
	assert.Equal(t, 3, f.manager.Len())

	f.wall.advance(31 * time.Minute)
	fresh := f.create(t)

	assert.Equal(t, 2, f.manager.Sweep())
	assert.Equal(t, 2, f.manager.Len())
	_, err = f.manager.Get(submitted.ID, learner)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.manager.Get(abandoned.ID, learner)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.manager.Get(running.ID, learner)
	assert.NoError(t, err)
	_, err = f.manager.Get(fresh.ID, learner)
	assert.NoError(t, err)

	_, err = f.manager.End(ctx, running.ID, learner)
	require.NoError(t, err)
	f.wall.advance(31 * time.Minute)
	assert.Equal(t, 2, f.manager.Sweep())
	assert.Equal(t, 0, f.manager.Len())
}

func TestManager_RunSweeperStopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	f.wall.advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.manager.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.manager.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
