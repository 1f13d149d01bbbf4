package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/madmonkey48/kh-allert-radar/internal/clock"
	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/message"
	"github.com/madmonkey48/kh-allert-radar/internal/notify"
	"github.com/madmonkey48/kh-allert-radar/internal/observability"
	"github.com/madmonkey48/kh-allert-radar/internal/priority"
	"github.com/madmonkey48/kh-allert-radar/internal/session"
)

// Fetcher supplies the current hazard snapshot.
// Params: ctx bounds the fetch.
// Returns: area snapshot or fetch error.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Snapshot, error)
}

// Loop drives the poll cycle: fetch, advance the session, deliver events.
// Source failures are treated as an empty snapshot so the bot never hangs
// on upstream outages; they are still counted and logged.
// Params: fetcher, state machine, aggregator, renderer, dispatcher.
// Returns: single-goroutine poll driver.
type Loop struct {
	fetcher    Fetcher
	tracker    *session.Tracker
	daily      *session.Daily
	gate       *priority.Gate
	renderer   *message.Renderer
	dispatcher *notify.Dispatcher
	sessionCfg config.SessionConfig
	serviceCfg config.ServiceConfig
	metrics    *observability.Metrics
	clk        clock.Clock
	logger     *slog.Logger

	mu   sync.Mutex
	last domain.Snapshot
}

// NewLoop wires the poll cycle collaborators.
// Params: collaborators built by the service layer.
// Returns: ready loop.
func NewLoop(
	fetcher Fetcher,
	tracker *session.Tracker,
	daily *session.Daily,
	gate *priority.Gate,
	renderer *message.Renderer,
	dispatcher *notify.Dispatcher,
	sessionCfg config.SessionConfig,
	serviceCfg config.ServiceConfig,
	metrics *observability.Metrics,
	clk clock.Clock,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		fetcher:    fetcher,
		tracker:    tracker,
		daily:      daily,
		gate:       gate,
		renderer:   renderer,
		dispatcher: dispatcher,
		sessionCfg: sessionCfg,
		serviceCfg: serviceCfg,
		metrics:    metrics,
		clk:        clk,
		logger:     logger,
	}
}

// recoveryBackoff tracks the delay before retrying after a failed tick.
// The delay doubles per consecutive failure up to the cap and resets on
// the first clean tick.
type recoveryBackoff struct {
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

func newRecoveryBackoff(cfg config.ServiceConfig) *recoveryBackoff {
	initial := time.Duration(cfg.RecoveryDelaySec) * time.Second
	return &recoveryBackoff{
		initial: initial,
		max:     time.Duration(cfg.RecoveryMaxDelaySec) * time.Second,
		next:    initial,
	}
}

// fail returns the delay before the next attempt and advances the backoff.
func (b *recoveryBackoff) fail() time.Duration {
	delay := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return delay
}

func (b *recoveryBackoff) reset() {
	b.next = b.initial
}

// Run polls on the configured interval until the context is canceled.
// Tick failures back off with doubling delay up to the configured cap.
// Params: ctx stops the loop.
// Returns: nothing; errors are logged and retried.
func (l *Loop) Run(ctx context.Context) {
	interval := time.Duration(l.serviceCfg.PollIntervalSec) * time.Second

	delay := interval
	timer := time.NewTimer(delay)
	defer timer.Stop()

	backoff := newRecoveryBackoff(l.serviceCfg)
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := l.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			delay = backoff.fail()
			l.logger.Error("tick processing failed", "error", err.Error(), "retry_in", delay.String())
		} else {
			delay = interval
			backoff.reset()
		}
		timer.Reset(delay)
	}
}

// Tick runs one poll cycle.
// Params: ctx bounds fetch and deliveries.
// Returns: first delivery or render error of the cycle.
func (l *Loop) Tick(ctx context.Context) error {
	started := l.clk.Now()
	l.metrics.PollsTotal.Inc()

	snapshot, err := l.fetcher.Fetch(ctx)
	if err != nil {
		l.metrics.PollFailures.Inc()
		l.logger.Warn("source fetch failed, treating as all clear", "error", err.Error())
		snapshot = domain.Snapshot{ObservedAt: l.clk.Now()}
	}

	l.mu.Lock()
	l.last = snapshot
	l.mu.Unlock()

	var firstErr error
	markErr := func(stepErr error) {
		if stepErr != nil && firstErr == nil {
			firstErr = stepErr
		}
	}

	now := l.clk.Now()
	if report, closed := l.daily.Rollover(now); closed {
		markErr(l.deliverDaily(ctx, report))
	}

	for _, event := range l.tracker.Advance(snapshot, now) {
		l.metrics.SessionEvents.WithLabelValues(string(event.Kind)).Inc()
		markErr(l.handleEvent(ctx, event))
	}

	if l.tracker.View().Active {
		l.metrics.AlertActive.Set(1)
	} else {
		l.metrics.AlertActive.Set(0)
	}

	l.metrics.PollDuration.Observe(l.clk.Now().Sub(started).Seconds())
	return firstErr
}

// Snapshot returns the most recent source snapshot for status queries.
// Params: none.
// Returns: last observed snapshot.
func (l *Loop) Snapshot() domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// handleEvent records and delivers one session event.
// Params: ctx bounds delivery; event is a tracker emission.
// Returns: render or delivery error.
func (l *Loop) handleEvent(ctx context.Context, event domain.SessionEvent) error {
	switch event.Kind {
	case domain.EventStart:
		l.daily.RecordStart(event.Category, event.At)
	case domain.EventEnd:
		l.daily.RecordEnd(event.Duration, event.At)
		l.gate.Clear()
		if session.SuppressEnd(l.sessionCfg, event.Duration) {
			l.logger.Info("short session end suppressed", "duration", event.Duration.String())
			return nil
		}
	}

	text, err := l.renderer.Event(event)
	if err != nil {
		return fmt.Errorf("render %s event: %w", event.Kind, err)
	}
	return l.deliver(ctx, text)
}

// deliverDaily renders and sends one closed-day report.
// Params: ctx bounds delivery; report is a closed day aggregate.
// Returns: render or delivery error.
func (l *Loop) deliverDaily(ctx context.Context, report domain.DailyReport) error {
	text, err := l.renderer.Daily(report)
	if err != nil {
		return fmt.Errorf("render daily report: %w", err)
	}
	return l.deliver(ctx, text)
}

// deliver sends one message and keeps delivery metrics.
func (l *Loop) deliver(ctx context.Context, text string) error {
	started := l.clk.Now()
	err := l.dispatcher.Deliver(ctx, text)
	l.metrics.NotificationLatency.Observe(l.clk.Now().Sub(started).Seconds())
	if err != nil {
		l.metrics.NotificationErrors.Inc()
		return err
	}
	l.metrics.NotificationsSent.Inc()
	return nil
}
