package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"go-chatroom/internal/infrastructure/queue/port"
)

// ===================== Client =====================

// AsynqClient implements port.Client on top of asynq and Redis.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient connects to the Redis instance at redisURL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := redisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

var _ port.Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), toAsynqOptions(opts)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// toAsynqOptions maps the first option only; callers pass one consolidated option.
func toAsynqOptions(opts []port.EnqueueOption) []asynq.Option {
	if len(opts) == 0 {
		return nil
	}
	op := opts[0]
	var res []asynq.Option
	if !op.ProcessAt.IsZero() {
		res = append(res, asynq.ProcessAt(op.ProcessAt))
	} else if op.ProcessIn > 0 {
		res = append(res, asynq.ProcessIn(op.ProcessIn))
	}
	if op.Queue != "" {
		res = append(res, asynq.Queue(op.Queue))
	}
	if op.MaxRetry > 0 {
		res = append(res, asynq.MaxRetry(op.MaxRetry))
	}
	if op.Timeout > 0 {
		res = append(res, asynq.Timeout(op.Timeout))
	}
	if !op.Deadline.IsZero() {
		res = append(res, asynq.Deadline(op.Deadline))
	}
	return res
}

// ===================== Server =====================

// ServerConfig tunes the worker pool.
type ServerConfig struct {
	RedisURL    string
	Concurrency int
	// Queues is a CSV of weights like "chat=6,default=1".
	Queues string
}

// AsynqServer implements port.Server using asynq.
type AsynqServer struct {
	log    *slog.Logger
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewAsynqServer(log *slog.Logger, cfg ServerConfig) (*AsynqServer, error) {
	opt, err := redisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	queues := parseQueueWeights(cfg.Queues)
	if len(queues) == 0 {
		queues = map[string]int{"default": 1, "chat": 1}
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			log.Error("task failed", "type", task.Type(), "retried", retried, "error", err)
		}),
	})
	return &AsynqServer{log: log, server: srv, mux: asynq.NewServeMux()}, nil
}

var _ port.Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		err := h(withAttempt(ctx), port.Task{Type: t.Type(), Payload: t.Payload()})
		if errors.Is(err, port.ErrSkipRetry) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	})
}

func withAttempt(ctx context.Context) context.Context {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return ctx
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return port.WithAttempt(ctx, port.Attempt{Retried: retried, MaxRetry: maxRetry})
}

// Run starts the workers and blocks until ctx is canceled, then shuts down.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	s.log.Info("task workers started")
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// Stop gracefully shuts down the server. asynq's Shutdown takes no context.
func (s *AsynqServer) Stop(_ context.Context) error {
	s.server.Shutdown()
	return nil
}

func redisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return opt, nil
}

// parseQueueWeights parses strings like "critical=6,default=3,low=1" into a map.
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}
