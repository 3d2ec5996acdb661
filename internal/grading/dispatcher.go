// Package grading packages a session's answers and hands them to the grading API.
package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bandup/session-service/internal/models"
	"github.com/bandup/session-service/internal/repositories"
	"github.com/bandup/session-service/internal/store"
	"gorm.io/datatypes"
)

var (
	ErrMissingAttempt = errors.New("no current attempt id")
	ErrGradingFailed  = errors.New("grading request failed")
	ErrNoResult       = errors.New("no test result stored")

	ErrSubmissionLogNotFound = errors.New("submission log not found")
)

// Submission is what a session hands to the dispatcher.
type Submission struct {
	SessionID string
	LearnerID string
	Sections  []models.Section
	Answers   map[string]string
}

// Outcome is returned on a successful dispatch.
type Outcome struct {
	Record   models.SubmissionRecord `json:"-"`
	Result   *models.GradingResult   `json:"result"`
	Redirect string                  `json:"redirect"`
}

type Dispatcher struct {
	api    GradingAPI
	state  store.StateStore
	logs   repositories.SubmissionLogRepository
	logger *slog.Logger
}

type DispatcherConfig struct {
	API    GradingAPI
	State  store.StateStore
	Logs   repositories.SubmissionLogRepository // optional
	Logger *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		api:    cfg.API,
		state:  cfg.State,
		logs:   cfg.Logs,
		logger: cfg.Logger,
	}
}

// Submit sends the answers once. Nothing is retried; on failure the caller's state is
// untouched and the learner may submit again.
func (d *Dispatcher) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	attemptID, err := d.state.Get(ctx, sub.LearnerID, store.KeyCurrentAttemptID)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to read attempt id: %w", err)
	}
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		d.logger.Warn("Submission aborted: no attempt id",
			"session_id", sub.SessionID,
			"learner_id", sub.LearnerID)
		return nil, ErrMissingAttempt
	}

	record := models.SubmissionRecord{
		AttemptID: attemptID,
		Answers:   BuildPayload(sub.Sections, sub.Answers),
	}

	d.logger.Info("Submitting answers for grading",
		"session_id", sub.SessionID,
		"attempt_id", attemptID,
		"answers_count", len(record.Answers))

	result, err := d.api.SubmitAnswers(ctx, record)
	if err != nil {
		d.logger.Error("Grading request failed",
			"session_id", sub.SessionID,
			"attempt_id", attemptID,
			"error", err)
		d.audit(ctx, sub, record, nil, err)
		return nil, fmt.Errorf("%w: %w", ErrGradingFailed, err)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode test result: %w", err)
	}
	if err := d.state.Set(ctx, sub.LearnerID, store.KeyLatestTestResult, string(encoded)); err != nil {
		// The result is still returned; only the results view loses its copy.
		d.logger.Error("Failed to persist latest test result",
			"attempt_id", attemptID,
			"error", err)
	}
	// a graded attempt cannot be submitted again
	if err := d.state.Delete(ctx, sub.LearnerID, store.KeyCurrentAttemptID); err != nil {
		d.logger.Warn("Failed to clear attempt id",
			"attempt_id", attemptID,
			"error", err)
	}
	d.audit(ctx, sub, record, result, nil)

	d.logger.Info("Answers graded",
		"session_id", sub.SessionID,
		"attempt_id", attemptID,
		"test_id", result.TestID,
		"band_score", result.BandScore)

	return &Outcome{
		Record:   record,
		Result:   result,
		Redirect: ResultsPath(result.TestID),
	}, nil
}

// LatestResult returns the learner's last stored grading result. When the state store has
// lost it, the most recent successful submission log is used instead.
func (d *Dispatcher) LatestResult(ctx context.Context, learnerID string) (*models.GradingResult, error) {
	raw, err := d.state.Get(ctx, learnerID, store.KeyLatestTestResult)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return d.latestFromLog(ctx, learnerID)
		}
		return nil, err
	}
	var result models.GradingResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		d.logger.Warn("Stored test result is malformed", "learner_id", learnerID, "error", err)
		return d.latestFromLog(ctx, learnerID)
	}
	return &result, nil
}

func (d *Dispatcher) latestFromLog(ctx context.Context, learnerID string) (*models.GradingResult, error) {
	if d.logs == nil {
		return nil, ErrNoResult
	}
	entry, err := d.logs.GetLatestByLearner(ctx, nil, learnerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoResult
		}
		return nil, fmt.Errorf("failed to read submission log: %w", err)
	}
	var result models.GradingResult
	if len(entry.Result) == 0 || json.Unmarshal(entry.Result, &result) != nil {
		return nil, ErrNoResult
	}
	return &result, nil
}

// History lists the learner's submission logs, newest first.
func (d *Dispatcher) History(ctx context.Context, learnerID string, filters repositories.SubmissionLogFilters) ([]*models.SubmissionLog, int64, error) {
	if d.logs == nil {
		return []*models.SubmissionLog{}, 0, nil
	}
	filters.LearnerID = learnerID
	return d.logs.List(ctx, nil, filters)
}

// SubmissionLog returns one of the learner's submission logs.
func (d *Dispatcher) SubmissionLog(ctx context.Context, learnerID string, id uint) (*models.SubmissionLog, error) {
	if d.logs == nil {
		return nil, ErrSubmissionLogNotFound
	}
	entry, err := d.logs.GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionLogNotFound
		}
		return nil, err
	}
	if entry.LearnerID != learnerID {
		return nil, ErrSubmissionLogNotFound
	}
	return entry, nil
}

// SetCurrentAttempt records the attempt id issued by the attempt-creation flow.
func (d *Dispatcher) SetCurrentAttempt(ctx context.Context, learnerID, attemptID string) error {
	return d.state.Set(ctx, learnerID, store.KeyCurrentAttemptID, strings.TrimSpace(attemptID))
}

func ResultsPath(testID string) string {
	if testID == "" {
		return "/results"
	}
	return "/results/" + testID
}

func (d *Dispatcher) audit(ctx context.Context, sub Submission, record models.SubmissionRecord, result *models.GradingResult, cause error) {
	if d.logs == nil {
		return
	}

	entry := &models.SubmissionLog{
		SessionID:   sub.SessionID,
		LearnerID:   sub.LearnerID,
		AttemptID:   record.AttemptID,
		Status:      models.SubmissionSucceeded,
		AnswerCount: len(record.Answers),
	}
	if payload, err := json.Marshal(record); err == nil {
		entry.Payload = datatypes.JSON(payload)
	}
	if result != nil {
		if encoded, err := json.Marshal(result); err == nil {
			entry.Result = datatypes.JSON(encoded)
		}
		band := result.BandScore
		entry.BandScore = &band
	}
	if cause != nil {
		entry.Status = models.SubmissionFailed
		msg := cause.Error()
		entry.Error = &msg
	}

	if err := d.logs.Create(ctx, nil, entry); err != nil {
		d.logger.Warn("Failed to write submission log", "session_id", sub.SessionID, "error", err)
	}
}
