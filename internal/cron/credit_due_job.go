package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
)

const defaultDueReminderLimit = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type creditDueLister interface {
	ListAccountsDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CreditAccount, error)
}

type customerLookup interface {
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error)
}

type reminderEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreditDueJobParams configures the khata due-reminder job.
type CreditDueJobParams struct {
	Logger            *logger.Logger
	Accounts          creditDueLister
	Customers         customerLookup
	Outbox            reminderEmitter
	TransactionRunner txRunner
	Limit             int
}

// NewCreditDueJob queues credit.due_reminder events for khata accounts whose
// due date has passed with an outstanding balance.
func NewCreditDueJob(params CreditDueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("credit account lister required")
	}
	if params.Customers == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultDueReminderLimit
	}
	return &creditDueJob{
		logg:      params.Logger,
		accounts:  params.Accounts,
		customers: params.Customers,
		outbox:    params.Outbox,
		txRunner:  params.TransactionRunner,
		limit:     limit,
		now:       time.Now,
	}, nil
}

type creditDueJob struct {
	logg      *logger.Logger
	accounts  creditDueLister
	customers customerLookup
	outbox    reminderEmitter
	txRunner  txRunner
	limit     int
	now       func() time.Time
}

func (j *creditDueJob) Name() string { return "credit-due-reminder" }

func (j *creditDueJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	accounts, err := j.accounts.ListAccountsDueBefore(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list due accounts: %w", err)
	}

	var errs error
	queued := 0
	for _, account := range accounts {
		if err := j.remind(ctx, account); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("account %s: %w", account.ID, err))
			continue
		}
		queued++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"accounts_due":     len(accounts),
		"reminders_queued": queued,
	})
	j.logg.Info(logCtx, "credit due reminders queued")
	return errs
}

func (j *creditDueJob) remind(ctx context.Context, account models.CreditAccount) error {
	customer, err := j.customers.Get(ctx, account.ShopID, account.CustomerID)
	if err != nil {
		return fmt.Errorf("lookup customer: %w", err)
	}

	data := map[string]any{
		"balance": account.CurrentBalance,
	}
	if account.DueDate != nil {
		data["dueDate"] = account.DueDate.UTC().Format(time.RFC3339)
	}

	return j.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventTypeCreditDueReminder,
			AggregateType: enums.OutboxAggregateTypeCreditAccount,
			AggregateID:   account.ID,
			ShopID:        account.ShopID,
			Recipient:     customer.Phone,
			Data:          data,
			OccurredAt:    j.now().UTC(),
		})
	})
}
