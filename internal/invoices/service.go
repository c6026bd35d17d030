package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerReader interface {
	FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the invoicing surface.
type Service interface {
	Create(ctx context.Context, shopID uuid.UUID, input CreateInvoiceInput) (*models.Invoice, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Invoice, error)
	Send(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error)
	Cancel(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error)
	RecordPayment(ctx context.Context, shopID, id uuid.UUID, amount decimal.Decimal) (*models.Invoice, error)
	RecordPaymentTx(ctx context.Context, tx *gorm.DB, shopID, id uuid.UUID, amount decimal.Decimal) (*models.Invoice, error)
	MarkOverdue(ctx context.Context, cutoff time.Time) (int, error)
}

// ServiceParams groups dependencies for the invoice service.
type ServiceParams struct {
	Repo              Repository
	Customers         customerReader
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// LineItemInput is one billed line in a create request.
type LineItemInput struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateInvoiceInput captures a new invoice.
type CreateInvoiceInput struct {
	CustomerID     uuid.UUID
	SubscriptionID *uuid.UUID
	Items          []LineItemInput
	TaxAmount      decimal.Decimal
	DueDate        *time.Time
	MarkSent       bool
}

type service struct {
	repo      Repository
	customers customerReader
	outbox    outboxEmitter
	txRunner  txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an invoice service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer reader is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &service{
		repo:      params.Repo,
		customers: params.Customers,
		outbox:    params.Outbox,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Create builds the invoice with its line items. MarkSent issues it
// immediately, which is the auto-charge path for subscription deliveries.
func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateInvoiceInput) (*models.Invoice, error) {
	if shopID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and customer id are required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice requires at least one line item")
	}
	if input.TaxAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax amount must not be negative")
	}

	customer, err := s.customers.FindForShop(ctx, shopID, input.CustomerID)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}

	now := s.now()
	subtotal := decimal.Zero
	items := make([]models.InvoiceItem, 0, len(input.Items))
	for i, line := range input.Items {
		if strings.TrimSpace(line.Description) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: description is required", i))
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if line.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: unit price must not be negative", i))
		}
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.InvoiceItem{
			ID:          uuid.New(),
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
	}

	total := subtotal.Add(input.TaxAmount)
	invoice := &models.Invoice{
		ID:             uuid.New(),
		ShopID:         shopID,
		CustomerID:     customer.ID,
		SubscriptionID: input.SubscriptionID,
		Number:         newInvoiceNumber(now),
		Status:         enums.InvoiceStatusDraft,
		Subtotal:       subtotal,
		TaxAmount:      input.TaxAmount,
		TotalAmount:    total,
		PaidAmount:     decimal.Zero,
		BalanceAmount:  total,
		DueDate:        input.DueDate,
		Items:          items,
	}
	if input.MarkSent {
		invoice.Status = enums.InvoiceStatusSent
		invoice.SentAt = &now
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
			return err
		}
		if !input.MarkSent {
			return nil
		}
		return s.emitSent(ctx, tx, invoice, customer)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "invoice not found")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Invoice, error) {
	return s.repo.List(ctx, shopID, query)
}

// Send issues a draft invoice to the customer.
func (s *service) Send(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error) {
	var invoice *models.Invoice

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "invoice not found")
		}
		if !current.Status.CanTransitionTo(enums.InvoiceStatusSent) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("invoice in status %s cannot be sent", current.Status))
		}

		now := s.now()
		current.Status = enums.InvoiceStatusSent
		current.SentAt = &now
		if current.DueDate == nil {
			due := now.Add(7 * 24 * time.Hour)
			current.DueDate = &due
		}
		if err := repo.Update(ctx, current); err != nil {
			return err
		}

		customer, err := s.customers.FindForShop(ctx, shopID, current.CustomerID)
		if err != nil {
			return asNotFound(err, "customer not found")
		}
		if err := s.emitSent(ctx, tx, current, customer); err != nil {
			return err
		}

		invoice = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Cancel voids an invoice that has not been settled.
func (s *service) Cancel(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error) {
	var invoice *models.Invoice

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "invoice not found")
		}
		if !current.Status.CanTransitionTo(enums.InvoiceStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("invoice in status %s cannot be cancelled", current.Status))
		}
		current.Status = enums.InvoiceStatusCancelled
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		invoice = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// RecordPayment reconciles a received amount against the invoice balance.
func (s *service) RecordPayment(ctx context.Context, shopID, id uuid.UUID, amount decimal.Decimal) (*models.Invoice, error) {
	var invoice *models.Invoice

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.RecordPaymentTx(ctx, tx, shopID, id, amount)
		if err != nil {
			return err
		}
		invoice = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// RecordPaymentTx is RecordPayment running inside the caller's transaction,
// so a payment row and its invoice reconciliation commit together.
func (s *service) RecordPaymentTx(ctx context.Context, tx *gorm.DB, shopID, id uuid.UUID, amount decimal.Decimal) (*models.Invoice, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciliation requires a transaction")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	repo := s.repo.WithTx(tx)

	current, err := repo.FindByIDForUpdate(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "invoice not found")
	}

	switch current.Status {
	case enums.InvoiceStatusSent, enums.InvoiceStatusPartiallyPaid, enums.InvoiceStatusOverdue:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice in status %s cannot accept payments", current.Status))
	}

	if amount.GreaterThan(current.BalanceAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment %s exceeds outstanding balance %s", amount, current.BalanceAmount))
	}

	current.PaidAmount = current.PaidAmount.Add(amount)
	current.BalanceAmount = current.TotalAmount.Sub(current.PaidAmount)

	next := enums.InvoiceStatusPartiallyPaid
	if current.BalanceAmount.LessThanOrEqual(decimal.Zero) {
		next = enums.InvoiceStatusPaid
	}
	if next != current.Status {
		if !current.Status.CanTransitionTo(next) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("invoice cannot move from %s to %s", current.Status, next))
		}
		current.Status = next
	}

	if err := repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

// MarkOverdue flips open invoices past their due date. Used by the cron
// worker; returns how many rows were transitioned.
func (s *service) MarkOverdue(ctx context.Context, cutoff time.Time) (int, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, cutoff, 0)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for i := range candidates {
		invoice := candidates[i]
		if !invoice.Status.CanTransitionTo(enums.InvoiceStatusOverdue) {
			continue
		}
		invoice.Status = enums.InvoiceStatusOverdue
		if err := s.repo.Update(ctx, &invoice); err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{"invoice_id": invoice.ID.String()})
				s.logg.Error(logCtx, "marking invoice overdue failed", err)
			}
			continue
		}
		flipped++
	}
	return flipped, nil
}

func (s *service) emitSent(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, customer *models.Customer) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventTypeInvoiceSent,
		AggregateType: enums.OutboxAggregateTypeInvoice,
		AggregateID:   invoice.ID,
		ShopID:        invoice.ShopID,
		Recipient:     customer.Phone,
		Data: map[string]any{
			"invoiceNumber": invoice.Number,
			"totalAmount":   invoice.TotalAmount,
			"dueDate":       invoice.DueDate,
		},
	})
}

func newInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
