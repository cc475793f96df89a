package port

import (
	"context"
	"errors"
	"time"
)

// ErrSkipRetry marks a handler failure that retrying cannot fix.
var ErrSkipRetry = errors.New("queue: skip retry")

//go:generate go run go.uber.org/mock/mockgen -source=queue.go -destination=../../../../mocks/mock_queue.go -package=mocks

// Task is a background job: a stable type name plus an opaque payload.
// Payload encoding belongs to whoever registers the handler.
type Task struct {
	Type    string
	Payload []byte
}

// Handler processes a Task. A non-nil error asks the adapter to retry, so
// handlers must be idempotent or fail before side effects.
type Handler func(ctx context.Context, task Task) error

// EnqueueOption controls enqueue behavior. Zero values mean "unspecified".
type EnqueueOption struct {
	Queue     string        // logical queue name
	ProcessIn time.Duration // delay before processing
	ProcessAt time.Time     // absolute schedule time, wins over ProcessIn
	MaxRetry  int
	Timeout   time.Duration // per-attempt processing budget
	Deadline  time.Time
}

// Attempt describes which delivery of a task a handler is running.
type Attempt struct {
	Retried  int // retries so far; 0 on the first run
	MaxRetry int
}

// Final reports whether a failure now will not be retried.
func (a Attempt) Final() bool {
	return a.Retried >= a.MaxRetry
}

type attemptKey struct{}

// WithAttempt is used by adapters to expose retry state to handlers.
func WithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptKey{}, a)
}

// AttemptFrom returns the retry state set by the adapter, if any.
func AttemptFrom(ctx context.Context) (Attempt, bool) {
	a, ok := ctx.Value(attemptKey{}).(Attempt)
	return a, ok
}

// Client enqueues tasks for background processing.
type Client interface {
	Enqueue(ctx context.Context, t Task, opts ...EnqueueOption) (id string, err error)
	Close() error
}

// Server runs background workers that handle tasks.
// Run blocks until ctx is canceled.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
