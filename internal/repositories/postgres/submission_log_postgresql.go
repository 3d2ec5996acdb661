package postgres

import (
	"context"

	"github.com/bandup/session-service/internal/models"
	"github.com/bandup/session-service/internal/repositories"
	"gorm.io/gorm"
)

const defaultListLimit = 20

type SubmissionLogPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionLogPostgreSQL(db *gorm.DB) repositories.SubmissionLogRepository {
	return &SubmissionLogPostgreSQL{db: db}
}

func (s SubmissionLogPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s SubmissionLogPostgreSQL) Create(ctx context.Context, tx *gorm.DB, log *models.SubmissionLog) error {
	return s.getDB(tx).WithContext(ctx).Create(log).Error
}

func (s SubmissionLogPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.SubmissionLog, error) {
	var log models.SubmissionLog
	if err := s.getDB(tx).WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (s SubmissionLogPostgreSQL) GetLatestByLearner(ctx context.Context, tx *gorm.DB, learnerID string) (*models.SubmissionLog, error) {
	var log models.SubmissionLog
	if err := s.getDB(tx).WithContext(ctx).
		Where("learner_id = ? AND status = ?", learnerID, models.SubmissionSucceeded).
		Order("created_at DESC").
		First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

func (s SubmissionLogPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubmissionLogFilters) ([]*models.SubmissionLog, int64, error) {
	var logs []*models.SubmissionLog
	var total int64

	// apply filter first
	query := s.getDB(tx).WithContext(ctx).Model(&models.SubmissionLog{})
	if filters.LearnerID != "" {
		query = query.Where("learner_id = ?", filters.LearnerID)
	}
	if filters.AttemptID != "" {
		query = query.Where("attempt_id = ?", filters.AttemptID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(filters.Offset).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
