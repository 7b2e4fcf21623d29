package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"checkin/internal/dedupe"
	"checkin/internal/platform/config"
	"checkin/internal/platform/database"
	"checkin/internal/platform/metrics"
	redisclient "checkin/internal/platform/redis"
	ratelimitmetrics "checkin/internal/ratelimit/metrics"
	ratelimitsvc "checkin/internal/ratelimit/service"
	"checkin/internal/ratelimit/store/bucket"
	visitevents "checkin/internal/visit/events"
	visithandler "checkin/internal/visit/handler"
	visitmetrics "checkin/internal/visit/metrics"
	visitservice "checkin/internal/visit/service"
	visitstore "checkin/internal/visit/store"
	"checkin/pkg/platform/circuit"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/platform/middleware/request"
)

const eventBuffer = 1024

type visitBackend interface {
	visitservice.StoreTx
	visitservice.Catalog
	Ping(ctx context.Context) error
}

// app holds everything main needs to serve and to shut down.
type app struct {
	router    http.Handler
	events    *visitevents.AsyncPublisher
	storeKind string
	closers   []func() error
}

func (a *app) close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("shutdown: close failed", "error", err)
		}
	}
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}
	visitMetrics := visitmetrics.New(reg)

	backend, err := buildStore(ctx, cfg.Database, log, a)
	if err != nil {
		a.close(log)
		return nil, err
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		a.close(log)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
	}

	limiter, err := buildRateLimiter(cfg.Visit, rdb, log, reg)
	if err != nil {
		a.close(log)
		return nil, err
	}

	local := dedupe.NewMemory(dedupe.WithWindow(cfg.Visit.DedupeWindow))
	var filter visitservice.DuplicateFilter = local
	if rdb != nil {
		filter = dedupe.NewFallback(dedupe.NewRedis(rdb.Client, cfg.Visit.DedupeWindow), local, circuit.New("dedupe_store"), log)
	}

	sink, err := buildPublisher(ctx, cfg.Events, log)
	if err != nil {
		a.close(log)
		return nil, err
	}
	a.events = visitevents.NewAsyncPublisher(sink, eventBuffer,
		visitevents.WithLogger(log),
		visitevents.WithOnDrop(visitMetrics.IncrementEventsDropped),
	)
	a.closers = append(a.closers, a.events.Close)

	durability := visitstore.DurabilityLocal
	if cfg.Visit.ReplicatedCommit {
		durability = visitstore.DurabilityMajority
	}
	recorder := visitservice.NewRecorder(backend,
		visitservice.WithMaxAttempts(cfg.Visit.MaxAttempts),
		visitservice.WithBackoff(cfg.Visit.InitialBackoff, cfg.Visit.MaxBackoff),
		visitservice.WithTxOptions(visitstore.TxOptions{
			Isolation:  visitstore.IsolationSerializable,
			Durability: durability,
			Timeout:    cfg.Visit.CommitTimeout,
		}),
		visitservice.WithRecorderLogger(log),
		visitservice.WithRecorderMetrics(visitMetrics),
	)
	breaker := visitservice.NewBreaker(log, visitMetrics,
		circuit.WithFailureThreshold(cfg.Visit.BreakerFailureThreshold),
		circuit.WithSuccessThreshold(cfg.Visit.BreakerSuccessThreshold),
		circuit.WithCooldown(cfg.Visit.BreakerCooldown),
	)
	visits, err := visitservice.New(recorder, backend,
		visitservice.WithLogger(log),
		visitservice.WithMetrics(visitMetrics),
		visitservice.WithPublisher(a.events),
		visitservice.WithRateLimiter(limiter),
		visitservice.WithDuplicateFilter(filter),
		visitservice.WithBreaker(breaker),
	)
	if err != nil {
		a.close(log)
		return nil, err
	}

	a.router = buildRouter(cfg.Server, log, reg, visits, backend, rdb)
	return a, nil
}

func buildStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger, a *app) (visitBackend, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory visit store")
		a.storeKind = "memory"
		return visitstore.NewMemory(), nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, closeFunc(pool))

	pg := visitstore.NewPostgres(pool)
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate visit schema: %w", err)
		}
	}
	a.storeKind = "postgres"
	return pg, nil
}

func closeFunc(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}

// buildRateLimiter picks the bucket algorithm and, when Redis is configured,
// shares the sliding window across instances with an in-memory fallback.
func buildRateLimiter(cfg config.VisitConfig, rdb *redisclient.Client, log *slog.Logger, reg prometheus.Registerer) (*ratelimitsvc.Service, error) {
	var local bucket.Store = bucket.New()
	if cfg.RateLimitAlgorithm == "token_bucket" {
		local = bucket.NewTokenBucket()
	}

	store := local
	if rdb != nil && cfg.RateLimitAlgorithm != "token_bucket" {
		store = bucket.NewFallback(bucket.NewRedis(rdb.Client), local, circuit.New("ratelimit_store"), log)
	}

	return ratelimitsvc.New(store,
		ratelimitsvc.WithLogger(log),
		ratelimitsvc.WithMetrics(ratelimitmetrics.New(reg)),
		ratelimitsvc.WithLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
	)
}

func buildPublisher(ctx context.Context, cfg config.EventsConfig, log *slog.Logger) (visitevents.Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		p, err := visitevents.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		if err := p.EnsureTopic(ctx, 3, 1); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("ensure kafka topic: %w", err)
		}
		return p, nil
	case "nats":
		p, err := visitevents.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("nats publisher: %w", err)
		}
		return p, nil
	case "", "log":
		return visitevents.NewLogPublisher(log), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

func buildRouter(
	cfg config.Server,
	log *slog.Logger,
	reg *prometheus.Registry,
	visits *visitservice.Service,
	backend visitBackend,
	rdb *redisclient.Client,
) http.Handler {
	httpMetrics := metrics.NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(request.Context)
	r.Use(request.AccessLog(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", request.ScannerHeader, "X-Admin-Token"},
		MaxAge:         300,
	}))
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "store": "ok"}
		code := http.StatusOK
		if err := backend.Ping(r.Context()); err != nil {
			status["status"], status["store"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Health(r.Context()); err != nil {
				status["status"], status["redis"] = "degraded", err.Error()
				code = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))

	r.Group(func(api chi.Router) {
		api.Use(chimw.Timeout(cfg.RequestTimeout))
		visithandler.New(visits, log, cfg.AdminToken).Register(api)
	})
	return r
}
