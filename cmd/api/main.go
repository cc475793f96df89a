package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	v1 "go-chatroom/cmd/api/router/v1"
	cacheAdapter "go-chatroom/internal/infrastructure/cache/adapter"
	cacheport "go-chatroom/internal/infrastructure/cache/port"
	"go-chatroom/internal/infrastructure/database"
	queueAdapter "go-chatroom/internal/infrastructure/queue/adapter"
	qport "go-chatroom/internal/infrastructure/queue/port"
	"go-chatroom/internal/infrastructure/realtime"
	"go-chatroom/internal/infrastructure/telemetry"
	"go-chatroom/internal/pkg/chat/application/directory"
	"go-chatroom/internal/pkg/chat/application/dispatch"
	chat "go-chatroom/internal/pkg/chat/application/domain"
	"go-chatroom/internal/pkg/chat/application/task"
	"go-chatroom/internal/pkg/chat/application/usecase"
	repoAdapter "go-chatroom/internal/pkg/chat/persistence/repository/adapter"
	repository "go-chatroom/internal/pkg/chat/persistence/repository/port"
	httpHandler "go-chatroom/internal/pkg/chat/presentation/http"

	"github.com/Netflix/go-env"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly
	envFileErr := godotenv.Load()

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	cfg, err := loadConfig(es)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)
	if envFileErr != nil {
		log.Debug(".env file not loaded", "error", envFileErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Nobody is connected after a restart
	if err := repo.ClearPresence(ctx); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}

	var cache cacheport.Cache
	if cfg.RedisURL != "" {
		rc, err := cacheAdapter.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("nickname cache disabled", "error", err)
		} else {
			cache = rc
			defer func() { _ = rc.Close() }()
		}
	}

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	sessions := realtime.NewSessions(log, cfg.RegistryShards)
	defer sessions.Close()
	names := directory.New(log, repo, cache, cfg.NicknameCacheTTL)
	pipeline := dispatch.New(log, repo, names, sessions, realtime.NewRooms(cfg.RegistryShards), metrics)

	var queue qport.Client
	if cfg.RedisURL != "" {
		client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("queue client: %w", err)
		}
		defer func() { _ = client.Close() }()
		queue = client

		srv, err := queueAdapter.NewAsynqServer(log, queueAdapter.ServerConfig{
			RedisURL:    cfg.RedisURL,
			Concurrency: cfg.AsynqConcurrency,
			Queues:      cfg.AsynqQueues,
		})
		if err != nil {
			return fmt.Errorf("queue server: %w", err)
		}
		task.RegisterSendMessageTask(log, srv, usecase.NewSendMessageUseCase(pipeline))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error("task workers stopped", "error", err)
				stop()
			}
		}()
	}

	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := v1.NewEngine(log, httpHandler.Dependencies{
		Log:            log,
		Repo:           repo,
		Names:          names,
		Pipeline:       pipeline,
		Queue:          queue,
		RequestTimeout: cfg.RequestTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		SendTimeout:    cfg.SendTimeout,
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown
	sessions.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// openStore builds the configured chat store and returns its cleanup func.
func openStore(ctx context.Context, log *slog.Logger, cfg Config) (repository.ChatRepository, func(), error) {
	switch cfg.StoreDriver {
	case driverMemory:
		repo := repoAdapter.NewMemoryChatRepository()
		for _, name := range cfg.seedUsernames() {
			m := repo.AddMember(chat.Member{Username: name, Nickname: name})
			log.Info("seeded member", "member_id", m.ID, "username", m.Username)
		}
		return repo, func() {}, nil
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(connectCtx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return repoAdapter.NewPgChatRepository(pool), pool.Close, nil
	}
}
