// Package feed ingests free-text raid reports and turns them into notifications.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/madmonkey48/kh-allert-radar/internal/classify"
	"github.com/madmonkey48/kh-allert-radar/internal/clock"
	"github.com/madmonkey48/kh-allert-radar/internal/dedup"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/message"
	"github.com/madmonkey48/kh-allert-radar/internal/notify"
	"github.com/madmonkey48/kh-allert-radar/internal/observability"
	"github.com/madmonkey48/kh-allert-radar/internal/priority"
	"github.com/madmonkey48/kh-allert-radar/internal/region"
)

// Drop reasons reported in metrics.
const (
	dropUnmatched = "unmatched"
	dropDuplicate = "duplicate"
	dropGated     = "gated"
	dropInvalid   = "invalid"
)

// Pipeline runs one feed item through resolve, dedup, gate, render, deliver.
// Params: domain collaborators plus dispatcher and metrics.
// Returns: per-item processing with drop accounting.
type Pipeline struct {
	classifier *classify.Classifier
	normalizer *region.Normalizer
	cache      *dedup.Cache
	gate       *priority.Gate
	renderer   *message.Renderer
	dispatcher *notify.Dispatcher
	metrics    *observability.Metrics
	clk        clock.Clock
	logger     *slog.Logger
}

// NewPipeline wires the feed processing chain.
// Params: collaborators shared with the poll loop.
// Returns: ready pipeline.
func NewPipeline(
	classifier *classify.Classifier,
	normalizer *region.Normalizer,
	cache *dedup.Cache,
	gate *priority.Gate,
	renderer *message.Renderer,
	dispatcher *notify.Dispatcher,
	metrics *observability.Metrics,
	clk clock.Clock,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		normalizer: normalizer,
		cache:      cache,
		gate:       gate,
		renderer:   renderer,
		dispatcher: dispatcher,
		metrics:    metrics,
		clk:        clk,
		logger:     logger,
	}
}

// Process handles one feed item end to end.
// Dropped items are not errors; only render and delivery failures surface so
// queue ingest can ask for redelivery.
// Params: ctx bounds delivery; item is a decoded feed report.
// Returns: render or delivery error.
func (p *Pipeline) Process(ctx context.Context, item domain.FeedItem) error {
	p.metrics.FeedItems.Inc()

	location, ok := p.normalizer.Resolve(item.Text)
	if !ok {
		p.metrics.FeedDropped.WithLabelValues(dropUnmatched).Inc()
		p.logger.Debug("feed item outside the area", "source", item.Source)
		return nil
	}

	category := p.classifier.Classify(item.Text)
	direction, _ := p.normalizer.MatchDirection(item.Text)

	// Duplicate by content hash or by source+message id, whichever hits.
	// The content hash catches the same report re-posted across channels.
	duplicate := p.cache.Observe(item.ContentKey())
	if idKey := item.IDKey(); idKey != "" && p.cache.Observe(idKey) {
		duplicate = true
	}
	if duplicate {
		p.metrics.FeedDropped.WithLabelValues(dropDuplicate).Inc()
		p.logger.Debug("feed item suppressed as duplicate", "source", item.Source)
		return nil
	}

	if !p.gate.Admit(classify.Severity(category)) {
		p.metrics.FeedDropped.WithLabelValues(dropGated).Inc()
		p.logger.Debug("feed item below current escalation level",
			"category", string(category), "location", location)
		return nil
	}

	text, err := p.renderer.Raid(domain.RaidReport{
		Category:  category,
		Level:     classify.Severity(category),
		District:  location,
		Direction: direction,
		At:        p.clk.Now(),
	})
	if err != nil {
		return fmt.Errorf("render feed report: %w", err)
	}

	if err := p.dispatcher.Deliver(ctx, text); err != nil {
		p.metrics.NotificationErrors.Inc()
		return fmt.Errorf("deliver feed report: %w", err)
	}
	p.metrics.NotificationsSent.Inc()
	p.logger.Info("feed report delivered",
		"category", string(category), "location", location)
	return nil
}
