package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marshymcfloat/service-flow/internal/app"
	"github.com/marshymcfloat/service-flow/internal/config"
	"github.com/marshymcfloat/service-flow/internal/conflict"
	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/lock"
	"github.com/marshymcfloat/service-flow/internal/notify"
	"github.com/marshymcfloat/service-flow/internal/obs"
	"github.com/marshymcfloat/service-flow/internal/resilience"
)

// The sweeper owns the periodic conflict scan: a scheduler emits a fan-out
// task on the configured interval, the worker scans each business under a
// redis lock, and a delivery loop pushes resulting webhooks out.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "sweeper").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri")
	}

	taskClient, err := app.NewTaskClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task client")
	}
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	notifyStore := &notify.PGStore{Pool: pool}
	webhookHTTP := notify.HTTPClient(int(cfg.WebhookTimeout/time.Millisecond), false)
	dispatcher := &notify.Dispatcher{
		Store: notifyStore,
		HTTP:  webhookHTTP,
		Resilient: &resilience.HTTPClient{
			Client:      webhookHTTP,
			Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("webhook-delivery").WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 2,
			Jitter:      0.2,
			Timeout:     cfg.WebhookTimeout,
		},
		BackoffBaseSec:     2,
		DefaultMaxAttempts: cfg.WebhookMaxRetries,
		Enabled:            true,
		Replay:             notify.RedisReplayProtector{Client: redisClient},
		ReplayTTL:          cfg.IdempotencyTTL,
	}
	bus := &events.Bus{Store: &events.PGStore{Pool: pool}, Scheduler: dispatcher}

	sweeper := &conflict.Sweeper{
		Svc: &conflict.Service{
			Store:  &conflict.PGRepo{Pool: pool},
			Bus:    bus,
			Logger: logger,
		},
		Tasks:   taskClient,
		Locker:  &lock.Locker{R: redisClient},
		LockTTL: cfg.SweepLockTTL,
		Logger:  logger,
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Logger:      asynqLogger{logger},
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", cfg.SweepInterval), conflict.NewSweepTask()); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := dispatcher.WorkOnce(ctx, 50); err != nil && ctx.Err() == nil {
					logger.Error().Err(err).Msg("dispatch webhook")
				}
			}
		}
	}()

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	logger.Info().Dur("interval", cfg.SweepInterval).Msg("sweeper starting")
	if err := srv.Start(sweeper.NewMux()); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("sweeper shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

// asynqLogger adapts zerolog to the asynq logging interface.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
