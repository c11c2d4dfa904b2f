package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/muebleria/cotizador-backend/pkg/config"
	"github.com/muebleria/cotizador-backend/pkg/db/models"
	"github.com/muebleria/cotizador-backend/pkg/logger"
	"github.com/muebleria/cotizador-backend/pkg/metrics"
	"github.com/muebleria/cotizador-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
	maxJitter             = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending() (int64, error)
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service drains committed outbox rows to their pubsub topics. Rows are
// locked for the duration of a batch so several publishers can run side by
// side.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	metrics          *metrics.OutboxMetrics
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeParked
)

type batchStats struct {
	fetched   int
	published int
	retried   int
	parked    int
}

func NewService(p ServiceParams) (*Service, error) {
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"config", p.Config == nil},
		{"logger", p.Logger == nil},
		{"database client", p.DB == nil},
		{"pubsub client", p.PubSub == nil},
		{"outbox repository", p.Repository == nil},
		{"event registry", p.Registry == nil},
	} {
		if dep.missing {
			return nil, fmt.Errorf("outbox publisher: %s is required", dep.name)
		}
	}

	factory := p.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher { return wrapPublisher(p.PubSub.Publisher(topic)) }
	}

	pollInterval := defaultPollInterval
	if p.Config.Outbox.PollIntervalMS > 0 {
		pollInterval = time.Duration(p.Config.Outbox.PollIntervalMS) * time.Millisecond
	}

	return &Service{
		logg:             p.Logger,
		db:               p.DB,
		repo:             p.Repository,
		pubsub:           p.PubSub,
		registry:         p.Registry,
		metrics:          p.Metrics,
		publisherFactory: factory,
		batchSize:        positiveOr(p.Config.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(p.Config.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval:     pollInterval,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. Full batches are followed immediately by
// the next poll; failed batches back off exponentially.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" not reachable", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}

	failures := 0
	for {
		stats, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			failures++
			wait = retryDelay(s.pollInterval, failures)
		case stats.fetched == s.batchSize:
			failures = 0
		default:
			failures = 0
			wait = s.pollInterval
		}

		if wait > 0 {
			wait += rand.N(maxJitter)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		stats.fetched = len(events)

		for _, event := range events {
			result, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			switch result {
			case outcomePublished:
				stats.published++
			case outcomeRetry:
				stats.retried++
			case outcomeParked:
				stats.parked++
			}
		}
		return nil
	})
	if err == nil && stats.fetched > 0 {
		s.recordBacklog(ctx)
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"fetched":   stats.fetched,
			"published": stats.published,
			"retried":   stats.retried,
			"parked":    stats.parked,
		}), "outbox batch drained")
	}
	return stats, err
}

func (s *Service) recordBacklog(ctx context.Context) {
	pending, err := s.repo.CountPending()
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox backlog count failed")
		return
	}
	s.metrics.SetPending(pending)
}

// dispatch publishes one row and records the result on it. The returned error
// is reserved for bookkeeping failures, which abort the batch.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	ctx = s.logg.WithFields(ctx, eventFields(event))

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return s.park(ctx, tx, event, "non_retryable", err)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"topic":       resolved.Descriptor.Topic,
		"event_id":    resolved.Envelope.EventID,
		"occurred_at": resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	if err := s.publish(ctx, event, resolved); err != nil {
		s.metrics.IncFailed(string(event.EventType))

		var nonRetryable registry.NonRetryableError
		switch {
		case errors.As(err, &nonRetryable):
			return s.park(ctx, tx, event, "non_retryable", err)
		case event.AttemptCount+1 >= s.maxAttempts:
			return s.park(ctx, tx, event, "max_attempts", fmt.Errorf("max publish attempts reached: %w", err))
		}

		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"attempt_count": event.AttemptCount + 1,
			"error":         err.Error(),
		}), "outbox publish failed, will retry")
		if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
			return outcomeRetry, fmt.Errorf("record failure on %s: %w", event.ID, err)
		}
		return outcomeRetry, nil
	}

	if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return outcomePublished, fmt.Errorf("mark %s published: %w", event.ID, err)
	}
	s.metrics.IncPublished(string(event.EventType))
	s.logg.Info(ctx, "outbox event published")
	return outcomePublished, nil
}

// park leaves the row in place with its attempts exhausted so the poller
// skips it until someone replays it by hand.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason string, cause error) (outcome, error) {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"terminal_reason": reason,
		"error":           cause.Error(),
	}), "outbox event parked")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return outcomeParked, fmt.Errorf("park %s: %w", event.ID, err)
	}
	return outcomeParked, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope.EventID),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for topic %q returned no result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

func messageAttributes(event models.OutboxEvent, eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

// retryDelay doubles base for every consecutive failure, capped at maxBackoff.
func retryDelay(base time.Duration, failures int) time.Duration {
	delay := base
	for i := 0; i < failures && delay < maxBackoff; i++ {
		delay *= 2
	}
	return min(delay, maxBackoff)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
