package tasks

import (
	"context"
	"time"
)

type TaskInterface interface {
	Execute(ctx context.Context) error
	GetID() string
	GetType() TaskType
	// GetShowID returns the show row a task holds the in-flight slot
	// for, or "" for tasks not bound to a show.
	GetShowID() string
	GetRetryCount() int
	GetMaxRetries() int
	IncrementRetryCount()
	CanRetry() bool
	Start()
	GetDuration() time.Duration
}

// TaskSchedulerInterface is the scheduler surface used by the main
// application and the management API.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerCrawl(showID string) error
	GetStats() Stats
}
