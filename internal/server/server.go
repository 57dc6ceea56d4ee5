/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotbook/internal/api"
	"github.com/friendsincode/slotbook/internal/audit"
	"github.com/friendsincode/slotbook/internal/availability"
	"github.com/friendsincode/slotbook/internal/booking"
	"github.com/friendsincode/slotbook/internal/cache"
	"github.com/friendsincode/slotbook/internal/config"
	"github.com/friendsincode/slotbook/internal/db"
	"github.com/friendsincode/slotbook/internal/eventbus"
	"github.com/friendsincode/slotbook/internal/events"
	"github.com/friendsincode/slotbook/internal/leadership"
	"github.com/friendsincode/slotbook/internal/scheduler"
	"github.com/friendsincode/slotbook/internal/slots"
	"github.com/friendsincode/slotbook/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db                   *gorm.DB
	cache                *cache.Cache
	bus                  *events.Bus
	publisher            events.Publisher
	api                  *api.API
	auditSvc             *audit.Service
	scheduler            *scheduler.Service
	leaderAwareScheduler *scheduler.LeaderAwareScheduler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("slotbook-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	bus := events.NewBus()
	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       bus,
		publisher: bus,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		businessCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = businessCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		if s.cfg.InstanceID != "" {
			natsCfg.Name = "slotbook-" + s.cfg.InstanceID
		}
		natsBus, err := eventbus.NewNATSBus(natsCfg, s.bus, s.logger)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		// Other instances' catalog changes must reach the local cache listener.
		if _, err := natsBus.Forward(events.EventBusinessUpdated); err != nil {
			_ = natsBus.Close()
			return fmt.Errorf("forward business updates: %w", err)
		}
		s.publisher = natsBus
		s.DeferClose(natsBus.Close)
	}

	logger := s.logger
	var slotStore slots.Store = slots.NewGormStore(database)
	if s.cache != nil {
		slotStore = slots.NewCachedStore(slotStore, s.cache)
	}
	slotSvc := slots.NewService(slotStore, s.publisher, s.cfg.DaysAhead, logger)
	calc := availability.NewCalculator(database, logger)
	bookings := booking.NewService(database, calc, s.publisher, logger)

	s.scheduler = scheduler.New(database, slotSvc, s.cfg.BatchHour, logger)
	s.scheduler.SetBus(s.publisher)
	if s.cache != nil {
		s.scheduler.SetCache(s.cache)
	}

	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.DefaultConfig()
		electionConfig.RedisAddr = s.cfg.RedisAddr
		electionConfig.RedisPassword = s.cfg.RedisPassword
		electionConfig.RedisDB = s.cfg.RedisDB
		if s.cfg.InstanceID != "" {
			electionConfig.InstanceID = s.cfg.InstanceID
		}

		election, err := leadership.NewElection(electionConfig, logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}

		s.leaderAwareScheduler = scheduler.NewLeaderAware(s.scheduler, election, logger)
		s.DeferClose(func() error { return s.leaderAwareScheduler.Stop() })

		logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", election.InstanceID()).
			Msg("leader election enabled for batch")
	}

	s.auditSvc = audit.NewService(database, s.bus, logger)

	s.api = api.New(database, []byte(s.cfg.JWTSigningKey), slotSvc, calc, bookings, s.scheduler, logger)
	s.api.SetAudit(s.auditSvc)
	return nil
}

// HTTPServer returns the API server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer returns the metrics server, or nil when disabled.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background workers and releases resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers fn to run on Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.leaderAwareScheduler != nil {
		if err := s.leaderAwareScheduler.Start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader-aware batch failed to start")
		}
	} else if s.scheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("batch loop exited")
			}
		}()
	}

	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx)
		}()
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	if s.cache != nil {
		sub := s.bus.Subscribe(events.EventBusinessUpdated)
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			defer s.bus.Unsubscribe(events.EventBusinessUpdated, sub)
			s.runCacheInvalidationListener(ctx, sub)
		}()
	}
}

func (s *Server) runCacheInvalidationListener(ctx context.Context, updates events.Subscriber) {
	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload, ok := <-updates:
			if !ok {
				return
			}
			s.logger.Debug().Msg("invalidating business cache (business updated)")
			if businessID, ok := payload["business_id"].(string); ok && businessID != "" {
				_ = s.cache.InvalidateBusiness(ctx, businessID)
				continue
			}
			_ = s.cache.InvalidateBusinessList(ctx)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		response := `{"status":"ok"`
		if s.leaderAwareScheduler != nil {
			if s.leaderAwareScheduler.IsLeader() {
				response += `,"leader":true`
			} else {
				response += `,"leader":false`
			}
		}
		response += `}`
		_, _ = w.Write([]byte(response))
	})

	s.api.Routes(s.router)
}
