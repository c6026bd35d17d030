package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/internal/coupons"
	"github.com/kiranahq/kirana-backend/internal/credit"
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

type customerStats interface {
	RecordDeliveredOrder(ctx context.Context, tx *gorm.DB, shopID, customerID uuid.UUID, orderTotal decimal.Decimal) error
}

type productGateway interface {
	FindForShop(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error)
	AdjustStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) (bool, error)
}

type couponRedeemer interface {
	Redeem(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, code string, customerID, orderID uuid.UUID, orderAmount decimal.Decimal) (*coupons.Quote, error)
}

type creditLedger interface {
	GetAccountByCustomer(ctx context.Context, shopID, customerID uuid.UUID) (*models.CreditAccount, error)
	ApplyTransactionTx(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, input credit.ApplyTransactionInput) (*models.CreditAccount, *models.CreditTransaction, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the order surface.
type Service interface {
	Place(ctx context.Context, shopID uuid.UUID, input PlaceOrderInput) (*models.Order, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Order, error)
	UpdateStatus(ctx context.Context, shopID, id uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error)
	CountOrdersSince(ctx context.Context, shopID, customerID uuid.UUID, since time.Time) (int64, error)
}

// ServiceParams groups dependencies for the order service.
type ServiceParams struct {
	Repo              Repository
	Customers         customerReader
	CustomerStats     customerStats
	Products          productGateway
	Coupons           couponRedeemer
	Credit            creditLedger
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// OrderLineInput is one requested product/quantity pair.
type OrderLineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// PlaceOrderInput captures a new order.
type PlaceOrderInput struct {
	CustomerID  uuid.UUID
	Items       []OrderLineInput
	PaymentMode enums.PaymentMode
	CouponCode  string
	Notes       string
}

type service struct {
	repo      Repository
	customers customerReader
	stats     customerStats
	products  productGateway
	coupons   couponRedeemer
	credit    creditLedger
	outbox    outboxEmitter
	txRunner  txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer reader is required")
	}
	if params.CustomerStats == nil {
		return nil, errors.New("customer stats updater is required")
	}
	if params.Products == nil {
		return nil, errors.New("product gateway is required")
	}
	if params.Coupons == nil {
		return nil, errors.New("coupon redeemer is required")
	}
	if params.Credit == nil {
		return nil, errors.New("credit ledger is required")
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
		stats:     params.CustomerStats,
		products:  params.Products,
		coupons:   params.Coupons,
		credit:    params.Credit,
		outbox:    params.Outbox,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Place creates the order atomically: stock decrements, coupon redemption,
// the optional khata debit and the placed notification all commit together
// or not at all.
func (s *service) Place(ctx context.Context, shopID uuid.UUID, input PlaceOrderInput) (*models.Order, error) {
	if shopID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and customer id are required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if !input.PaymentMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment mode %q", input.PaymentMode))
	}
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	customer, err := s.customers.FindForShop(ctx, shopID, input.CustomerID)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}

	var order *models.Order

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		items := make([]models.OrderItem, 0, len(input.Items))
		subtotal := decimal.Zero
		orderID := uuid.New()

		for _, line := range input.Items {
			product, err := s.products.FindForShop(ctx, shopID, line.ProductID)
			if err != nil {
				return asNotFound(err, "product not found")
			}
			if !product.Active {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("product %s is not available", product.Name))
			}
			ok, err := s.products.AdjustStockTx(ctx, tx, product.ID, -line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for %s", product.Name))
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, models.OrderItem{
				ID:          uuid.New(),
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Unit:        product.Unit,
				UnitPrice:   product.Price,
				Quantity:    line.Quantity,
				LineTotal:   lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		discount := decimal.Zero
		var couponID *uuid.UUID
		if input.CouponCode != "" {
			quote, err := s.coupons.Redeem(ctx, tx, shopID, input.CouponCode, customer.ID, orderID, subtotal)
			if err != nil {
				return err
			}
			discount = quote.Discount
			couponID = &quote.Coupon.ID
		}
		total := subtotal.Sub(discount)

		order = &models.Order{
			ID:             orderID,
			ShopID:         shopID,
			CustomerID:     customer.ID,
			Number:         newOrderNumber(now),
			Status:         enums.OrderStatusPending,
			PaymentMode:    input.PaymentMode,
			Subtotal:       subtotal,
			DiscountAmount: discount,
			TotalAmount:    total,
			CouponID:       couponID,
			Notes:          strings.TrimSpace(input.Notes),
			Items:          items,
		}
		if err := repo.Create(ctx, order); err != nil {
			return err
		}

		if input.PaymentMode == enums.PaymentModeCredit {
			account, err := s.credit.GetAccountByCustomer(ctx, shopID, customer.ID)
			if err != nil {
				return err
			}
			// purchases on khata raise the balance toward the limit
			_, _, err = s.credit.ApplyTransactionTx(ctx, tx, shopID, credit.ApplyTransactionInput{
				AccountID:   account.ID,
				Type:        enums.CreditTransactionTypeCredit,
				Amount:      total,
				Description: "order " + order.Number,
				Reference:   order.ID.String(),
			})
			if err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventTypeOrderPlaced,
			AggregateType: enums.OutboxAggregateTypeOrder,
			AggregateID:   order.ID,
			ShopID:        shopID,
			Recipient:     customer.Phone,
			Data: map[string]any{
				"orderNumber": order.Number,
				"totalAmount": order.TotalAmount,
				"paymentMode": order.PaymentMode,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, query ListQuery) ([]models.Order, error) {
	return s.repo.List(ctx, shopID, query)
}

// UpdateStatus moves the order along the fulfillment machine. Cancellation
// goes through Cancel so stock is restored.
func (s *service) UpdateStatus(ctx context.Context, shopID, id uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}
	if next == enums.OrderStatusCancelled {
		return s.Cancel(ctx, shopID, id)
	}

	var order *models.Order

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "order not found")
		}
		if !current.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", current.Status, next))
		}

		current.Status = next
		if next == enums.OrderStatusDelivered {
			deliveredAt := s.now().UTC()
			current.DeliveredAt = &deliveredAt

			if err := s.stats.RecordDeliveredOrder(ctx, tx, shopID, current.CustomerID, current.TotalAmount); err != nil {
				return err
			}
			if err := s.emitDelivered(ctx, tx, current); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel aborts a non-terminal order and restores the reserved stock.
func (s *service) Cancel(ctx context.Context, shopID, id uuid.UUID) (*models.Order, error) {
	var order *models.Order

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "order not found")
		}
		if !current.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s cannot be cancelled", current.Status))
		}

		for _, item := range current.Items {
			if _, err := s.products.AdjustStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if current.PaymentMode == enums.PaymentModeCredit {
			account, err := s.credit.GetAccountByCustomer(ctx, shopID, current.CustomerID)
			if err != nil {
				return err
			}
			// exact inverse of the placement entry
			_, _, err = s.credit.ApplyTransactionTx(ctx, tx, shopID, credit.ApplyTransactionInput{
				AccountID:   account.ID,
				Type:        enums.CreditTransactionTypeDebit,
				Amount:      current.TotalAmount,
				Description: "order " + current.Number + " cancelled",
				Reference:   current.ID.String(),
			})
			if err != nil {
				return err
			}
		}

		cancelledAt := s.now().UTC()
		current.Status = enums.OrderStatusCancelled
		current.CancelledAt = &cancelledAt
		if err := repo.Update(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CountOrdersSince feeds the credit score's recent-activity band.
func (s *service) CountOrdersSince(ctx context.Context, shopID, customerID uuid.UUID, since time.Time) (int64, error) {
	return s.repo.CountOrdersSince(ctx, shopID, customerID, since)
}

func (s *service) emitDelivered(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	customer, err := s.customers.FindForShop(ctx, order.ShopID, order.CustomerID)
	if err != nil {
		return asNotFound(err, "customer not found")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventTypeOrderDelivered,
		AggregateType: enums.OutboxAggregateTypeOrder,
		AggregateID:   order.ID,
		ShopID:        order.ShopID,
		Recipient:     customer.Phone,
		Data: map[string]any{
			"orderNumber": order.Number,
			"totalAmount": order.TotalAmount,
			"deliveredAt": order.DeliveredAt,
		},
	})
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
