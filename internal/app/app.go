package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/internal/config"
	"github.com/smartspend/smartspend/internal/database"
	"github.com/smartspend/smartspend/pkg/ledger"
	"github.com/smartspend/smartspend/pkg/scheduler"
)

const shutdownTimeout = 30 * time.Second

// Application wires configuration, database, router, scheduler, and server lifecycle.
type Application struct {
	cfg    config.Application
	deps   *Dependencies
	pool   *pgxpool.Pool
	redis  *redis.Client
	router *mux.Router
	srv    *http.Server
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(ctx context.Context, configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// DB + migrations
	if err := database.Migrate(cfg.Database); err != nil {
		return nil, err
	}
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	var runLock scheduler.RunLock = scheduler.NoopRunLock{}
	if cfg.Redis.Enabled {
		redisClient, err = openRedis(ctx, cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, err
		}
		runLock = scheduler.NewRedisRunLock(redisClient, cfg.Scheduler.LockTTL)
	}

	deps, err := BuildDependencies(ledger.NewStore(pool), runLock, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	r := NewRouter(deps)
	srv := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, deps: deps, pool: pool, redis: redisClient, router: r, srv: srv}, nil
}

func openRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Infof("Connected to redis at %s", cfg.Addr)
	return client, nil
}

// Run starts the scheduler trigger and the HTTP server, and blocks until SIGINT or SIGTERM.
// On shutdown a running scheduler batch is allowed to finish.
func (a *Application) Run() error {
	if a.cfg.Scheduler.Enabled {
		a.deps.SchedulerTrigger.Start()
	} else {
		log.Info("Recurring plan trigger disabled, runs only on demand")
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Infof("Received %s, shutting down", sig)
	case err := <-serverErr:
		runErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
	a.deps.SchedulerTrigger.Stop()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warnf("failed to close redis client: %v", err)
		}
	}
	a.pool.Close()
	log.Info("Server stopped")
	return runErr
}
