package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type invoiceOverdueMarker interface {
	MarkOverdue(ctx context.Context, cutoff time.Time) (int, error)
}

// InvoiceOverdueJobParams configures the overdue-invoice sweep.
type InvoiceOverdueJobParams struct {
	Logger   *logger.Logger
	Invoices invoiceOverdueMarker
}

// NewInvoiceOverdueJob flips SENT and PARTIALLY_PAID invoices past their due
// date to OVERDUE.
func NewInvoiceOverdueJob(params InvoiceOverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	return &invoiceOverdueJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		now:      time.Now,
	}, nil
}

type invoiceOverdueJob struct {
	logg     *logger.Logger
	invoices invoiceOverdueMarker
	now      func() time.Time
}

func (j *invoiceOverdueJob) Name() string { return "invoice-overdue" }

func (j *invoiceOverdueJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	flipped, err := j.invoices.MarkOverdue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("mark overdue: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_flipped": flipped,
	})
	j.logg.Info(logCtx, "overdue invoice sweep complete")
	return nil
}
