package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewLimiterStore wires a rate limiter store backed by Redis.
func NewLimiterStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "ratelimit",
	})
}

// NewRateLimitMiddleware returns HTTP middleware enforcing a per-client
// request budget per minute. A non-positive limit disables limiting.
func NewRateLimitMiddleware(store limiter.Store, perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	instance := limiter.New(store, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(perMinute),
	})
	middleware := limitermw.NewMiddleware(instance)
	return middleware.Handler
}

// NewMigrator prepares a database migrator for the given source directory.
// The connection URL is rewritten onto the pgx driver so migrations run over
// the same driver as the application pool.
func NewMigrator(databaseURL, sourceDir string) (*migrate.Migrate, error) {
	url := databaseURL
	switch {
	case strings.HasPrefix(url, "postgres://"):
		url = "pgx5://" + strings.TrimPrefix(url, "postgres://")
	case strings.HasPrefix(url, "postgresql://"):
		url = "pgx5://" + strings.TrimPrefix(url, "postgresql://")
	}
	m, err := migrate.New("file://"+sourceDir, url)
	if err != nil {
		return nil, fmt.Errorf("open migrator: %w", err)
	}
	return m, nil
}

// RunMigrations applies all pending migrations. An already up-to-date schema
// is not an error.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// NewTaskClient builds an asynq client from the shared Redis URL.
func NewTaskClient(redisURL string) (*asynq.Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis uri: %w", err)
	}
	return asynq.NewClient(opt), nil
}
