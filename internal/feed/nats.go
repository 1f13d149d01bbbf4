package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
	"github.com/madmonkey48/kh-allert-radar/internal/observability"
)

// NATSSubscriber consumes feed items via a JetStream queue consumer.
// Malformed items are acked away; processing failures are nacked for
// redelivery.
// Params: NATS connection, queue subscription, and pipeline destination.
// Returns: feed ingest lifecycle handle.
type NATSSubscriber struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewNATSSubscriber starts a JetStream queue consumer for feed items.
// Params: cfg is NATS ingest config; pipeline handles decoded items.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(
	cfg config.FeedNATSConfig,
	pipeline *Pipeline,
	metrics *observability.Metrics,
	logger *slog.Logger,
) (*NATSSubscriber, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats feed: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for feed: %w", err)
	}

	subscriber := &NATSSubscriber{
		nc:     nc,
		logger: logger,
	}
	nackDelay := time.Duration(cfg.NackDelayMS) * time.Millisecond
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(time.Duration(cfg.AckWaitSec) * time.Second),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, func(msg *nats.Msg) {
		item, decodeErr := domain.DecodeFeedItem(msg.Data)
		if decodeErr != nil {
			metrics.FeedDropped.WithLabelValues(dropInvalid).Inc()
			logger.Warn("nats feed decode failed", "subject", msg.Subject, "error", decodeErr.Error())
			subscriber.ack(msg, "decode")
			return
		}
		if processErr := pipeline.Process(context.Background(), item); processErr != nil {
			logger.Error("nats feed processing failed", "subject", msg.Subject, "error", processErr.Error())
			subscriber.nack(msg, nackDelay)
			return
		}
		subscriber.ack(msg, "processed")
	}, subOpts...)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.DeliverGroup, err)
	}
	subscriber.sub = sub
	return subscriber, nil
}

// ack acknowledges one message and logs ack failures.
// Params: JetStream message and short reason.
// Returns: none.
func (s *NATSSubscriber) ack(msg *nats.Msg, reason string) {
	if msg == nil {
		return
	}
	if err := msg.Ack(); err != nil {
		s.logger.Warn("nats feed ack failed", "subject", msg.Subject, "reason", reason, "error", err.Error())
	}
}

// nack asks JetStream to redeliver one message and logs nack failures.
// Params: JetStream message and optional delay.
// Returns: none.
func (s *NATSSubscriber) nack(msg *nats.Msg, delay time.Duration) {
	if msg == nil {
		return
	}
	var err error
	if delay > 0 {
		err = msg.NakWithDelay(delay)
	} else {
		err = msg.Nak()
	}
	if err != nil {
		s.logger.Warn("nats feed nack failed", "subject", msg.Subject, "error", err.Error())
	}
}

// Close drains the subscription and closes the connection.
// Params: none.
// Returns: drain error.
func (s *NATSSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.nc.Close()
			return err
		}
	}
	s.nc.Close()
	return nil
}
