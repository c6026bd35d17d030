package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranahq/kirana-backend/pkg/logger"
)

const defaultRetentionDays = 14

type outboxPruner interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configures the published-event pruning job.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	Outbox        outboxPruner
	RetentionDays int
}

// NewOutboxRetentionJob deletes notification events that were published
// longer ago than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		retention: time.Duration(days) * 24 * time.Hour,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    outboxPruner
	retention time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.outbox.DeletePublishedBefore(cutoff)
	if err != nil {
		return fmt.Errorf("prune published events: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "outbox retention sweep complete")
	return nil
}
