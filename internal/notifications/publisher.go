package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/metrics"
	"github.com/kiranahq/kirana-backend/pkg/whatsapp"
)

type outboxSource interface {
	FetchUnpublished(limit int, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

// Sender delivers one rendered message. Implemented by the WhatsApp client.
type Sender interface {
	Send(ctx context.Context, msg whatsapp.Message) error
}

// Publisher drains staged outbox rows to WhatsApp. Per-row failures are
// recorded on the row and never abort the batch.
type Publisher struct {
	source      outboxSource
	sender      Sender
	metrics     *metrics.OutboxMetrics
	logg        *logger.Logger
	batchSize   int
	maxAttempts int
}

// PublisherParams groups dependencies for the notification publisher.
type PublisherParams struct {
	Source      outboxSource
	Sender      Sender
	Metrics     *metrics.OutboxMetrics
	Logger      *logger.Logger
	BatchSize   int
	MaxAttempts int
}

// NewPublisher builds a publisher with the required dependencies.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Source == nil {
		return nil, errors.New("outbox source is required")
	}
	if params.Sender == nil {
		return nil, errors.New("sender is required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Publisher{
		source:      params.Source,
		sender:      params.Sender,
		metrics:     params.Metrics,
		logg:        params.Logger,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}, nil
}

// ProcessBatch fetches one batch of pending notifications and sends them.
// Returns how many were published and how many failed.
func (p *Publisher) ProcessBatch(ctx context.Context) (published, failed int, err error) {
	start := time.Now()

	events, err := p.source.FetchUnpublished(p.batchSize, p.maxAttempts)
	if err != nil {
		return 0, 0, err
	}

	for _, event := range events {
		if err := p.publishOne(ctx, event); err != nil {
			failed++
			p.recordFailure(ctx, event, err)
			continue
		}
		published++
		p.metrics.IncPublished(event.EventType.String())
	}

	p.metrics.ObserveBatch(time.Since(start))
	return published, failed, nil
}

func (p *Publisher) publishOne(ctx context.Context, event models.OutboxEvent) error {
	msg, err := Render(event)
	if err != nil {
		return err
	}
	if err := p.sender.Send(ctx, msg); err != nil {
		return err
	}
	return p.source.MarkPublished(event.ID)
}

func (p *Publisher) recordFailure(ctx context.Context, event models.OutboxEvent, cause error) {
	p.metrics.IncFailed(event.EventType.String())
	if err := p.source.MarkFailed(event.ID, cause); err != nil && p.logg != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{"event_id": event.ID.String()})
		p.logg.Error(logCtx, "recording notification failure", err)
	}
	if p.logg != nil {
		logCtx := p.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.EventType.String(),
		})
		p.logg.Error(logCtx, "notification publish failed", cause)
	}
}
