package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeFetchSource TaskType = "fetch_source"
	TaskTypeSyncArticle TaskType = "sync_article"
	TaskTypeBulkSync    TaskType = "bulk_sync"
)

const (
	// DefaultMaxRetries allows three attempts in total.
	DefaultMaxRetries = 2

	DefaultFetchRetryDelay = 60 * time.Second
	DefaultSyncRetryDelay  = 30 * time.Second
	DefaultBulkRetryDelay  = 60 * time.Second
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	GetSubject() string
	GetRetryCount() int
	GetMaxRetries() int
	GetRetryDelay() time.Duration
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

// Task holds the bookkeeping shared by every task type.
// Subject names what the task works on, for logs.
type Task struct {
	ID         string
	Type       TaskType
	Subject    string
	RetryCount int
	MaxRetries int
	RetryDelay time.Duration
	StartedAt  *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetSubject() string {
	return t.Subject
}

func (t *Task) GetRetryCount() int {
	return t.RetryCount
}

func (t *Task) GetMaxRetries() int {
	return t.MaxRetries
}

func (t *Task) GetRetryDelay() time.Duration {
	return t.RetryDelay
}

func (t *Task) IncrementRetryCount() {
	t.RetryCount++
}

func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, subject string, retryDelay time.Duration) Task {
	return Task{
		ID:         uuid.NewString(),
		Type:       taskType,
		Subject:    subject,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: retryDelay,
	}
}

// terminal marks an error that retrying cannot fix.
func terminal(err error) error {
	return backoff.Permanent(err)
}

func isTerminal(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}
