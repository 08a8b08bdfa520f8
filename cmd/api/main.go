package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marshymcfloat/service-flow/internal/app"
	"github.com/marshymcfloat/service-flow/internal/auth"
	"github.com/marshymcfloat/service-flow/internal/booking"
	"github.com/marshymcfloat/service-flow/internal/cache"
	"github.com/marshymcfloat/service-flow/internal/common"
	"github.com/marshymcfloat/service-flow/internal/config"
	"github.com/marshymcfloat/service-flow/internal/conflict"
	"github.com/marshymcfloat/service-flow/internal/events"
	"github.com/marshymcfloat/service-flow/internal/health"
	"github.com/marshymcfloat/service-flow/internal/notify"
	"github.com/marshymcfloat/service-flow/internal/obs"
	"github.com/marshymcfloat/service-flow/internal/resilience"
	"github.com/marshymcfloat/service-flow/internal/sale"
	"github.com/marshymcfloat/service-flow/internal/schedule"
	"github.com/marshymcfloat/service-flow/internal/security"
	"github.com/marshymcfloat/service-flow/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "service-flow-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	migrationsDir := envOrDefault("MIGRATIONS_DIR", "db/migrations")
	if migrator, err := app.NewMigrator(cfg.DatabaseURL, migrationsDir); err != nil {
		logger.Fatal().Err(err).Msg("open migrator")
	} else if err := app.RunMigrations(migrator); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	authService, err := auth.NewService(auth.Config{Secret: cfg.JWTSecret})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMiddleware := auth.Middleware{Service: authService}

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootHost, cfg.DefaultBusiness)

	eventStore := &events.PGStore{Pool: pool}
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
	bus := &events.Bus{Store: eventStore, Scheduler: dispatcher}

	saleSvc := &sale.Service{
		Q:     &sale.PGRepo{Pool: pool},
		Cache: cache.New(redisClient, cfg.AvailabilityCacheTTL),
		Bus:   bus,
	}
	saleHandler := &sale.Handler{Svc: saleSvc}

	scheduleRepo := &schedule.PGRepo{Pool: pool}
	scheduleHandler := &schedule.Handler{Repo: scheduleRepo, Bus: bus}

	bookingSvc := &booking.Service{
		Catalog:     &booking.PGRepo{Pool: pool},
		Repo:        &booking.PGRepo{Pool: pool},
		Roster:      scheduleRepo,
		Discounts:   saleSvc,
		Bus:         bus,
		HorizonDays: cfg.BookingHorizonDays,
	}
	bookingHandler := &booking.Handler{
		Svc:      bookingSvc,
		SlotStep: time.Duration(cfg.SlotStepMinutes) * time.Minute,
	}

	conflictSvc := &conflict.Service{
		Store:  &conflict.PGRepo{Pool: pool},
		Bus:    bus,
		Logger: logger,
	}
	conflictHandler := &conflict.Handler{Svc: conflictSvc}
	notifyAdmin := &notify.AdminHandler{Store: notifyStore, Validate: validator.New()}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	rateLimit := app.NewRateLimitMiddleware(limiterStore, cfg.RateLimitPerMinute)

	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", cfg.TenantHeader},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(resolver.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	if envBool("ENABLE_PPROF", false) {
		user := envOrDefault("PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{db: pool, redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(rateLimit)

		v.Get("/availability", bookingHandler.Availability)
		v.Post("/bookings/quote", bookingHandler.Quote)
		v.With(idem.Middleware).Post("/bookings", bookingHandler.Submit)
		v.Get("/bookings/{id}", bookingHandler.Get)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auth.RequireRole("admin"))

			admin.Get("/sales", saleHandler.List)
			admin.Post("/sales", saleHandler.Create)
			admin.Put("/sales/{id}", saleHandler.Update)
			admin.Delete("/sales/{id}", saleHandler.Delete)
			admin.Post("/sales/preview", saleHandler.Preview)

			admin.Get("/hours", scheduleHandler.GetWeek)
			admin.Put("/hours/{weekday}", scheduleHandler.PutDayHours)
			admin.Put("/staffing/{weekday}", scheduleHandler.PutStaffing)

			admin.Post("/conflicts/scan", conflictHandler.Scan)
			admin.Get("/conflicts", conflictHandler.Reports)

			admin.Post("/webhooks", notifyAdmin.CreateEndpoint)
			admin.Get("/webhooks", notifyAdmin.ListEndpoints)
			admin.Delete("/webhooks/{id}", notifyAdmin.DeleteEndpoint)
		})
	})

	// in-process webhook delivery loop; the sweeper binary runs its own
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := dispatcher.WorkOnce(context.Background(), 50); err != nil {
				logger.Error().Err(err).Msg("dispatch webhook")
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "service-flow-api"

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

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
