package repositories

import (
	"context"
	"errors"

	"github.com/bandup/session-service/internal/models"
	"gorm.io/gorm"
)

type SubmissionLogFilters struct {
	LearnerID string                   `json:"learner_id"`
	AttemptID string                   `json:"attempt_id"`
	Status    *models.SubmissionStatus `json:"status"`
	Limit     int                      `json:"limit"`
	Offset    int                      `json:"offset"`
}

// SubmissionLogRepository persists the audit trail of grading dispatches
type SubmissionLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, log *models.SubmissionLog) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.SubmissionLog, error)
	GetLatestByLearner(ctx context.Context, tx *gorm.DB, learnerID string) (*models.SubmissionLog, error)
	List(ctx context.Context, tx *gorm.DB, filters SubmissionLogFilters) ([]*models.SubmissionLog, int64, error)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
