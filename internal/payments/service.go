package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/internal/credit"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
	"github.com/kiranahq/kirana-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerReader interface {
	FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error)
}

type invoiceGateway interface {
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Invoice, error)
	RecordPaymentTx(ctx context.Context, tx *gorm.DB, shopID, id uuid.UUID, amount decimal.Decimal) (*models.Invoice, error)
}

type creditLedger interface {
	GetAccountByCustomer(ctx context.Context, shopID, customerID uuid.UUID) (*models.CreditAccount, error)
	ApplyTransactionTx(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, input credit.ApplyTransactionInput) (*models.CreditAccount, *models.CreditTransaction, error)
}

type paymentGateway interface {
	CreateOrder(amount decimal.Decimal, receipt string, notes map[string]any) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records money received: offline cash/UPI entries and online
// Razorpay checkouts.
type Service interface {
	Record(ctx context.Context, shopID uuid.UUID, input RecordPaymentInput) (*models.Payment, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Payment, error)
	ListByCustomer(ctx context.Context, shopID, customerID uuid.UUID, limit int) ([]models.Payment, error)
	CreateGatewayOrder(ctx context.Context, shopID uuid.UUID, input CreateGatewayOrderInput) (*GatewayOrderResult, error)
	ConfirmGatewayPayment(ctx context.Context, shopID uuid.UUID, input ConfirmGatewayPaymentInput) (*models.Payment, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Repo              Repository
	Customers         customerReader
	Invoices          invoiceGateway
	Credit            creditLedger
	Gateway           paymentGateway
	Outbox            outboxEmitter
	TransactionRunner txRunner
}

// RecordPaymentInput captures an offline payment handed to the shopkeeper.
// ApplyToKhata settles the customer's credit balance with a PAYMENT ledger
// entry alongside any invoice reconciliation.
type RecordPaymentInput struct {
	CustomerID   uuid.UUID
	InvoiceID    *uuid.UUID
	Amount       decimal.Decimal
	Mode         enums.PaymentMode
	Reference    string
	ApplyToKhata bool
}

// CreateGatewayOrderInput opens an online checkout for an invoice. Amount
// defaults to the outstanding balance.
type CreateGatewayOrderInput struct {
	InvoiceID uuid.UUID
	Amount    *decimal.Decimal
}

// GatewayOrderResult pairs the pending payment row with the gateway order the
// client checkout needs.
type GatewayOrderResult struct {
	Payment *models.Payment
	Order   *razorpay.Order
}

// ConfirmGatewayPaymentInput carries the checkout callback fields Razorpay
// signs.
type ConfirmGatewayPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type service struct {
	repo      Repository
	customers customerReader
	invoices  invoiceGateway
	credit    creditLedger
	gateway   paymentGateway
	outbox    outboxEmitter
	txRunner  txRunner
	now       func() time.Time
}

// NewService builds a payment service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer reader is required")
	}
	if params.Invoices == nil {
		return nil, errors.New("invoice gateway is required")
	}
	if params.Credit == nil {
		return nil, errors.New("credit ledger is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("payment gateway is required")
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
		invoices:  params.Invoices,
		credit:    params.Credit,
		gateway:   params.Gateway,
		outbox:    params.Outbox,
		txRunner:  params.TransactionRunner,
		now:       time.Now,
	}, nil
}

// Record books an offline payment: the payment row, invoice reconciliation,
// khata settlement and the received notification commit together.
func (s *service) Record(ctx context.Context, shopID uuid.UUID, input RecordPaymentInput) (*models.Payment, error) {
	if shopID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and customer id are required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	switch input.Mode {
	case enums.PaymentModeCash, enums.PaymentModeUPI:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment mode %q cannot be recorded manually", input.Mode))
	}

	customer, err := s.customers.FindForShop(ctx, shopID, input.CustomerID)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}

	var payment *models.Payment

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now().UTC()

		if input.InvoiceID != nil {
			if _, err := s.invoices.RecordPaymentTx(ctx, tx, shopID, *input.InvoiceID, input.Amount); err != nil {
				return err
			}
		}

		if input.ApplyToKhata {
			if err := s.settleKhata(ctx, tx, shopID, customer.ID, input.Amount, input.Reference); err != nil {
				return err
			}
		}

		payment = &models.Payment{
			ID:          uuid.New(),
			ShopID:      shopID,
			InvoiceID:   input.InvoiceID,
			CustomerID:  customer.ID,
			Amount:      input.Amount,
			Mode:        input.Mode,
			Status:      enums.PaymentStatusCompleted,
			Reference:   input.Reference,
			CompletedAt: &now,
		}
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}

		return s.emitReceived(ctx, tx, payment, customer.Phone)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "payment not found")
	}
	return payment, nil
}

func (s *service) ListByCustomer(ctx context.Context, shopID, customerID uuid.UUID, limit int) ([]models.Payment, error) {
	return s.repo.ListByCustomer(ctx, shopID, customerID, limit)
}

// CreateGatewayOrder opens a Razorpay order for an open invoice and stores
// the pending payment row the confirmation callback resolves.
func (s *service) CreateGatewayOrder(ctx context.Context, shopID uuid.UUID, input CreateGatewayOrderInput) (*GatewayOrderResult, error) {
	invoice, err := s.invoices.Get(ctx, shopID, input.InvoiceID)
	if err != nil {
		return nil, err
	}

	switch invoice.Status {
	case enums.InvoiceStatusSent, enums.InvoiceStatusPartiallyPaid, enums.InvoiceStatusOverdue:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("invoice in status %s cannot accept payments", invoice.Status))
	}

	amount := invoice.BalanceAmount
	if input.Amount != nil {
		amount = *input.Amount
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if amount.GreaterThan(invoice.BalanceAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payment %s exceeds outstanding balance %s", amount, invoice.BalanceAmount))
	}

	order, err := s.gateway.CreateOrder(amount, invoice.Number, map[string]any{
		"invoice_id": invoice.ID.String(),
		"shop_id":    shopID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		ShopID:         shopID,
		InvoiceID:      &invoice.ID,
		CustomerID:     invoice.CustomerID,
		Amount:         amount,
		Mode:           enums.PaymentModeOnline,
		Status:         enums.PaymentStatusPending,
		GatewayOrderID: order.ID,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}

	return &GatewayOrderResult{Payment: payment, Order: order}, nil
}

// ConfirmGatewayPayment verifies the checkout signature and completes the
// pending payment. A bad signature marks the row FAILED.
func (s *service) ConfirmGatewayPayment(ctx context.Context, shopID uuid.UUID, input ConfirmGatewayPaymentInput) (*models.Payment, error) {
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id are required")
	}

	if !s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.markFailed(ctx, shopID, input, "signature verification failed")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}

	var payment *models.Payment

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByGatewayOrderForUpdate(ctx, shopID, input.GatewayOrderID)
		if err != nil {
			return asNotFound(err, "payment not found")
		}
		if current.Status != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payment in status %s cannot be confirmed", current.Status))
		}

		if current.InvoiceID != nil {
			if _, err := s.invoices.RecordPaymentTx(ctx, tx, shopID, *current.InvoiceID, current.Amount); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		current.Status = enums.PaymentStatusCompleted
		current.GatewayPaymentID = input.GatewayPaymentID
		current.CompletedAt = &now
		if err := repo.Update(ctx, current); err != nil {
			return err
		}

		customer, err := s.customers.FindForShop(ctx, shopID, current.CustomerID)
		if err != nil {
			return asNotFound(err, "customer not found")
		}
		payment = current
		return s.emitReceived(ctx, tx, current, customer.Phone)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// settleKhata posts the PAYMENT ledger entry that brings the customer's
// balance down and refreshes their score.
func (s *service) settleKhata(ctx context.Context, tx *gorm.DB, shopID, customerID uuid.UUID, amount decimal.Decimal, reference string) error {
	account, err := s.credit.GetAccountByCustomer(ctx, shopID, customerID)
	if err != nil {
		return err
	}
	_, _, err = s.credit.ApplyTransactionTx(ctx, tx, shopID, credit.ApplyTransactionInput{
		AccountID:   account.ID,
		Type:        enums.CreditTransactionTypePayment,
		Amount:      amount,
		Description: "khata payment",
		Reference:   reference,
	})
	return err
}

// markFailed records a rejected confirmation attempt. Best effort: the
// primary error is the signature failure.
func (s *service) markFailed(ctx context.Context, shopID uuid.UUID, input ConfirmGatewayPaymentInput, reason string) {
	payment, err := s.repo.FindByGatewayOrder(ctx, shopID, input.GatewayOrderID)
	if err != nil || payment.Status != enums.PaymentStatusPending {
		return
	}
	payment.Status = enums.PaymentStatusFailed
	payment.FailureReason = reason
	_ = s.repo.Update(ctx, payment)
}

func (s *service) emitReceived(ctx context.Context, tx *gorm.DB, payment *models.Payment, recipient string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventTypePaymentReceived,
		AggregateType: enums.OutboxAggregateTypeInvoice,
		AggregateID:   payment.ID,
		ShopID:        payment.ShopID,
		Recipient:     recipient,
		Data: map[string]any{
			"amount": payment.Amount,
			"mode":   payment.Mode,
		},
	})
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
