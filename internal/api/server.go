package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	redis "github.com/redis/go-redis/v9"

	"hookrelay/internal/config"
	"hookrelay/internal/store"
	"hookrelay/internal/webhooks"
)

type Server struct {
	Store      store.Store
	Log        store.DeliveryLog
	Dispatcher *webhooks.Dispatcher
	Broker     EventBroker
	Config     config.Config
	Logger     *slog.Logger

	closers []func() error
}

// NewServer wires the store, delivery log, broker and dispatcher from cfg.
// Without DATABASE_URL the subscription store is in memory; without REDIS_URL
// so are the delivery log and the live delivery feed.
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Config: cfg, Logger: logger}
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		s.Store = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.DBMigrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		s.Store = pg
		s.closers = append(s.closers, pg.Close)
	}

	if cfg.RedisURL == "" {
		s.Log = store.NewMemoryLog(cfg.Webhooks.LogRetention)
		s.Broker = NewBroker()
	} else {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			_ = s.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		s.Log = store.NewRedisLog(rdb, cfg.Webhooks.LogRetention)
		s.Broker = NewRedisBroker(rdb, logger)
		s.closers = append(s.closers, rdb.Close)
	}

	d := webhooks.NewDispatcher(s.Store, s.Log, webhooks.NewExecutor(cfg.Webhooks.Timeout), logger)
	d.Policy = webhooks.Policy{Threshold: cfg.Webhooks.FailureThreshold}
	d.MaxInFlight = cfg.Webhooks.MaxInFlight
	d.Notifier = s.Broker
	s.Dispatcher = d
	return s, nil
}

// Routes returns the API handler with logging, metrics and rate limiting applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler) // includes /test, /deliveries, /rotate-secret, /enable, /disable

	// Events
	mux.HandleFunc("/v1/events", s.EventsHandler)

	// Live delivery feed
	mux.HandleFunc("/v1/deliveries/ws", s.DeliveriesWSHandler)

	// Health, metrics, debug
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/debug/info", s.DebugInfoHandler)

	var h http.Handler = mux
	h = rateLimit(s.Config.Rate, h)
	h = s.logMiddleware(h)
	return h
}

// Close waits for in-flight dispatches and releases connections.
func (s *Server) Close() error {
	if s.Dispatcher != nil {
		s.Dispatcher.Wait()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// orgID resolves the calling organization. Authentication happens upstream;
// the gateway forwards the organization in X-Organization-Id.
func orgID(r *http.Request) string {
	org := r.Header.Get("X-Organization-Id")
	if org == "" {
		org = "org_demo"
	}
	return org
}
