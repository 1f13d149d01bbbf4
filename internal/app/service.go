// Package app composes the radar service runtime.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madmonkey48/kh-allert-radar/internal/classify"
	"github.com/madmonkey48/kh-allert-radar/internal/clock"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/dedup"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/feed"
	"github.com/madmonkey48/kh-allert-radar/internal/logging"
	"github.com/madmonkey48/kh-allert-radar/internal/message"
	"github.com/madmonkey48/kh-allert-radar/internal/notify"
	"github.com/madmonkey48/kh-allert-radar/internal/observability"
	"github.com/madmonkey48/kh-allert-radar/internal/priority"
	"github.com/madmonkey48/kh-allert-radar/internal/region"
	"github.com/madmonkey48/kh-allert-radar/internal/session"
	"github.com/madmonkey48/kh-allert-radar/internal/source"
)

// statusResponse is the /api/alerts payload.
type statusResponse struct {
	Active     bool               `json:"active"`
	Category   string             `json:"category,omitempty"`
	Locations  []string           `json:"locations,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	ObservedAt time.Time          `json:"observed_at"`
	Today      domain.DailyReport `json:"today"`
}

// mapResponse is the /api/map/alerts payload.
type mapResponse struct {
	ObservedAt time.Time `json:"observed_at"`
	Regions    []string  `json:"regions"`
}

// Service composes runtime dependencies and process lifecycle.
// Params: config snapshot and shared runtime components.
// Returns: runnable radar service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	loop      *Loop
	tracker   *session.Tracker
	daily     *session.Daily
	cache     *dedup.Cache
	httpSrv   *http.Server
	natsSub   interface{ Close() error }
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds a service instance from a config file.
// Params: configPath locates the TOML snapshot; clk supplies time.
// Returns: initialized service or setup error.
func NewService(configPath string, clk clock.Clock) (*Service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.New(cfg.Classify)
	if err != nil {
		closeLog()
		return nil, err
	}
	renderer, err := message.NewRenderer(cfg.Notify, cfg.Daily, cfg.Area.Name)
	if err != nil {
		closeLog()
		return nil, err
	}

	normalizer := region.New(cfg.Area, cfg.Feed.Unmatched)
	cache := dedup.New(cfg.Dedup, clk)
	if err := cache.Load(cfg.Dedup.StatePath); err != nil {
		logger.Warn("dedup state restore failed", "error", err.Error())
	}
	gate := priority.New(cfg.Priority, clk)
	metrics := observability.New()

	var sender notify.Sender
	if cfg.Notify.Telegram.Enabled {
		sender = notify.NewTelegramSender(cfg.Notify.Telegram)
	} else {
		sender = notify.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.Notify.Telegram.Retry, logger)

	tracker := session.NewTracker(cfg.Session)
	daily := session.NewDaily(cfg.Daily)
	fetcher := source.NewClient(cfg.Source, normalizer, classifier, clk)
	loop := NewLoop(fetcher, tracker, daily, gate, renderer, dispatcher,
		cfg.Session, cfg.Service, metrics, clk, logger)

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		loop:     loop,
		tracker:  tracker,
		daily:    daily,
		cache:    cache,
		clock:    clk,
	}

	pipeline := feed.NewPipeline(classifier, normalizer, cache, gate,
		renderer, dispatcher, metrics, clk, logger)
	service.buildHTTPServer(pipeline, metrics)
	if err := service.buildNATSSubscriber(pipeline, metrics); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Run starts the service lifecycle and blocks until a shutdown signal.
// Params: root context for the service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.loop.Run(shutdownCtx)

	s.readyFlag.Store(true)
	s.logger.Info("service started",
		"area", s.cfg.Area.Name,
		"poll_interval_sec", s.cfg.Service.PollIntervalSec)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats feed close failed", "error", err.Error())
			markErr(fmt.Errorf("nats feed close: %w", err))
		}
	}
	if err := s.cache.Save(s.cfg.Dedup.StatePath); err != nil {
		s.logger.Error("dedup state save failed", "error", err.Error())
		markErr(fmt.Errorf("dedup state save: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires status, observability, and feed ingest endpoints.
// Params: pipeline for feed ingest; metrics for the exposition handler.
// Returns: server stored on the service.
func (s *Service) buildHTTPServer(pipeline *feed.Pipeline, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.HTTP.HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.HTTP.ReadyPath, func(w http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not-ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc(s.cfg.HTTP.StatusPath, s.handleStatus)
	mux.HandleFunc(s.cfg.HTTP.MapPath, s.handleMapStatus)
	mux.Handle(s.cfg.HTTP.MetricsPath, promhttp.Handler())

	if s.cfg.Feed.HTTP.Enabled {
		mux.Handle(s.cfg.Feed.HTTP.Path, feed.Handler(pipeline, s.cfg.Feed.HTTP, metrics, s.logger))
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSSubscriber starts the queue feed ingest when enabled.
// Params: pipeline destination and metrics.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber(pipeline *feed.Pipeline, metrics *observability.Metrics) error {
	if !s.cfg.Feed.NATS.Enabled {
		return nil
	}
	subscriber, err := feed.NewNATSSubscriber(s.cfg.Feed.NATS, pipeline, metrics, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// handleStatus answers /api/alerts with the current session view.
// Params: response writer and request.
// Returns: JSON status payload.
func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	view := s.tracker.View()
	snapshot := s.loop.Snapshot()

	payload := statusResponse{
		Active:     view.Active,
		Category:   string(view.Category),
		Locations:  view.Locations,
		ObservedAt: snapshot.ObservedAt,
		Today:      s.daily.Current(),
	}
	if view.Active {
		startedAt := view.StartedAt
		payload.StartedAt = &startedAt
	}
	writeJSON(w, payload)
}

// handleMapStatus answers /api/map/alerts with all raw source regions.
// Params: response writer and request.
// Returns: JSON map payload.
func (s *Service) handleMapStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.loop.Snapshot()
	regions := snapshot.RawRegions
	if regions == nil {
		regions = []string{}
	}
	writeJSON(w, mapResponse{
		ObservedAt: snapshot.ObservedAt,
		Regions:    regions,
	})
}

// writeJSON encodes one response payload.
func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
	}
}
