// Package store is the per-learner key-value state shared with the attempt flow:
// the current attempt id and the latest grading result.
package store

import (
	"context"
	"errors"
)

const (
	KeyCurrentAttemptID = "currentAttemptId"
	KeyLatestTestResult = "latestTestResult"
)

var ErrKeyNotFound = errors.New("key not found")

type StateStore interface {
	Get(ctx context.Context, learnerID, key string) (string, error)
	Set(ctx context.Context, learnerID, key, value string) error
	Delete(ctx context.Context, learnerID, key string) error
}
