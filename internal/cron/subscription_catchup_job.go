package cron

import (
	"context"
	"fmt"

	"github.com/kiranahq/kirana-backend/pkg/logger"
)

const defaultCatchUpLimit = 250

type subscriptionCatchUpper interface {
	CatchUp(ctx context.Context, limit int) (int, error)
}

// SubscriptionCatchUpJobParams configures the missed-delivery sweep.
type SubscriptionCatchUpJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionCatchUpper
	Limit         int
}

// NewSubscriptionCatchUpJob marks missed scheduled deliveries FAILED and
// rolls each lagging subscription forward to its next future slot.
func NewSubscriptionCatchUpJob(params SubscriptionCatchUpJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultCatchUpLimit
	}
	return &subscriptionCatchUpJob{
		logg:          params.Logger,
		subscriptions: params.Subscriptions,
		limit:         limit,
	}, nil
}

type subscriptionCatchUpJob struct {
	logg          *logger.Logger
	subscriptions subscriptionCatchUpper
	limit         int
}

func (j *subscriptionCatchUpJob) Name() string { return "subscription-catchup" }

func (j *subscriptionCatchUpJob) Run(ctx context.Context) error {
	caught, err := j.subscriptions.CatchUp(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("subscription catch-up: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscriptions_advanced": caught,
		"limit":                  j.limit,
	})
	j.logg.Info(logCtx, "subscription catch-up complete")
	return nil
}
