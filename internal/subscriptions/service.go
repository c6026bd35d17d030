package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/internal/invoices"
	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/outbox"
)

// materializeWindow bounds how far ahead a delivery row is created for a
// computed next-delivery instant.
const materializeWindow = 30 * 24 * time.Hour

// invoiceDueWindow is the payment window attached to auto-charge invoices.
const invoiceDueWindow = 7 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerReader interface {
	FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error)
}

type productReader interface {
	FindForShop(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error)
}

type settingsProvider interface {
	PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type invoiceCreator interface {
	Create(ctx context.Context, shopID uuid.UUID, input invoices.CreateInvoiceInput) (*models.Invoice, error)
}

// Service defines the recurring-delivery surface.
type Service interface {
	Create(ctx context.Context, shopID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID, limit int) ([]models.Subscription, error)
	ListDeliveries(ctx context.Context, shopID, id uuid.UUID, limit int) ([]models.DeliverySchedule, error)
	CompleteDelivery(ctx context.Context, shopID, deliveryID uuid.UUID, input CompleteDeliveryInput) (*models.DeliverySchedule, error)
	Pause(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error)
	Resume(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error)
	Cancel(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error)
	CatchUp(ctx context.Context, limit int) (int, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	Customers         customerReader
	Products          productReader
	Settings          settingsProvider
	Invoices          invoiceCreator
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// CreateSubscriptionInput captures a new recurring delivery.
type CreateSubscriptionInput struct {
	CustomerID   uuid.UUID
	ProductID    uuid.UUID
	Quantity     int
	Frequency    enums.SubscriptionFrequency
	DeliveryTime string
	CustomDays   []string
	AutoCharge   bool
	StartDate    *time.Time
}

// CompleteDeliveryInput records what actually went out the door.
type CompleteDeliveryInput struct {
	ActualQuantity *int
	ActualPrice    *decimal.Decimal
	DeliveredBy    *uuid.UUID
}

type service struct {
	repo      Repository
	customers customerReader
	products  productReader
	settings  settingsProvider
	invoices  invoiceCreator
	outbox    outboxEmitter
	txRunner  txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer reader is required")
	}
	if params.Products == nil {
		return nil, errors.New("product reader is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	if params.Invoices == nil {
		return nil, errors.New("invoice creator is required")
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
		products:  params.Products,
		settings:  params.Settings,
		invoices:  params.Invoices,
		outbox:    params.Outbox,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// Create registers a recurring delivery for a customer/product pair and
// materializes the first scheduled drop when it falls inside the window.
func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error) {
	if shopID == uuid.Nil || input.CustomerID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id, customer id and product id are required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !input.Frequency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown subscription frequency %q", input.Frequency))
	}

	customer, err := s.customers.FindForShop(ctx, shopID, input.CustomerID)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}
	product, err := s.products.FindForShop(ctx, shopID, input.ProductID)
	if err != nil {
		return nil, asNotFound(err, "product not found")
	}
	if !product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available for subscription")
	}

	now := s.now().UTC()
	start := now
	if input.StartDate != nil {
		start = input.StartDate.UTC()
	}

	next, err := ComputeNextDelivery(input.Frequency, input.DeliveryTime, input.CustomDays, start, now)
	if err != nil {
		return nil, err
	}

	subscription := &models.Subscription{
		ID:           uuid.New(),
		ShopID:       shopID,
		CustomerID:   customer.ID,
		ProductID:    product.ID,
		Quantity:     input.Quantity,
		Unit:         product.Unit,
		PricePerUnit: product.Price,
		Frequency:    input.Frequency,
		DeliveryTime: input.DeliveryTime,
		CustomDays:   input.CustomDays,
		Active:       true,
		StartDate:    start,
		NextDelivery: &next,
		AutoCharge:   input.AutoCharge,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.Create(ctx, subscription); err != nil {
			if db.IsUniqueViolation(err, "idx_subscriptions_triple") {
				return pkgerrors.New(pkgerrors.CodeConflict,
					"customer already has a subscription for this product")
			}
			return err
		}
		if _, err := s.materializeDelivery(ctx, repo, subscription, next, now); err != nil {
			return err
		}
		return s.emitScheduled(ctx, tx, subscription, customer, next)
	})
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "subscription not found")
	}
	return subscription, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, customerID *uuid.UUID, limit int) ([]models.Subscription, error) {
	return s.repo.ListByShop(ctx, shopID, customerID, limit)
}

func (s *service) ListDeliveries(ctx context.Context, shopID, id uuid.UUID, limit int) ([]models.DeliverySchedule, error) {
	if _, err := s.repo.FindByID(ctx, shopID, id); err != nil {
		return nil, asNotFound(err, "subscription not found")
	}
	return s.repo.ListDeliveries(ctx, id, limit)
}

// CompleteDelivery marks a scheduled drop delivered, rolls the subscription
// forward and, when auto-charge is on, raises an invoice after the delivery
// has been committed. A failed charge never undoes the delivery.
func (s *service) CompleteDelivery(ctx context.Context, shopID, deliveryID uuid.UUID, input CompleteDeliveryInput) (*models.DeliverySchedule, error) {
	if input.ActualQuantity != nil && *input.ActualQuantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual quantity must be positive")
	}
	if input.ActualPrice != nil && input.ActualPrice.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual price must be positive")
	}

	var (
		delivery     *models.DeliverySchedule
		subscription *models.Subscription
	)

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindDeliveryByID(ctx, deliveryID)
		if err != nil {
			return asNotFound(err, "delivery not found")
		}
		sub, err := repo.FindByIDForUpdate(ctx, shopID, current.SubscriptionID)
		if err != nil {
			return asNotFound(err, "delivery not found")
		}
		if !sub.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is cancelled")
		}
		if !current.Status.CanTransitionTo(enums.DeliveryStatusDelivered) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("delivery in status %s cannot be completed", current.Status))
		}

		now := s.now().UTC()
		current.Status = enums.DeliveryStatusDelivered
		current.DeliveredAt = &now
		current.ActualQuantity = input.ActualQuantity
		current.ActualPrice = input.ActualPrice
		current.DeliveredBy = input.DeliveredBy
		if err := repo.UpdateDelivery(ctx, current); err != nil {
			return err
		}

		if !sub.Paused {
			// the next slot must land strictly after the delivered one,
			// even when the drop went out early
			anchor := now
			if current.DeliveryDate.After(anchor) {
				anchor = current.DeliveryDate
			}
			next, err := ComputeNextDelivery(sub.Frequency, sub.DeliveryTime, sub.CustomDays, current.DeliveryDate, anchor)
			if err != nil {
				return err
			}
			sub.NextDelivery = &next
			if _, err := s.materializeDelivery(ctx, repo, sub, next, now); err != nil {
				return err
			}
		}
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		if err := s.emitCompleted(ctx, tx, sub, current); err != nil {
			return err
		}

		delivery = current
		subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	if subscription.AutoCharge {
		s.chargeBestEffort(ctx, subscription, delivery)
	}
	return delivery, nil
}

// Pause stops upcoming drops without losing the subscription.
func (s *service) Pause(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	policy, err := s.settings.PolicyForShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if !policy.AllowPause {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "shop does not allow pausing subscriptions")
	}

	var subscription *models.Subscription

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sub, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "subscription not found")
		}
		if !sub.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is cancelled")
		}
		if sub.Paused {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already paused")
		}

		now := s.now().UTC()
		if err := repo.DeleteScheduledFrom(ctx, sub.ID, now); err != nil {
			return err
		}
		sub.Paused = true
		sub.NextDelivery = nil
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

// Resume recomputes the schedule from now and restarts drops.
func (s *service) Resume(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	var subscription *models.Subscription

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sub, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "subscription not found")
		}
		if !sub.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is cancelled")
		}
		if !sub.Paused {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not paused")
		}

		now := s.now().UTC()
		next, err := ComputeNextDelivery(sub.Frequency, sub.DeliveryTime, sub.CustomDays, now, now)
		if err != nil {
			return err
		}
		sub.Paused = false
		sub.NextDelivery = &next
		if _, err := s.materializeDelivery(ctx, repo, sub, next, now); err != nil {
			return err
		}
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

// Cancel ends the subscription. Planned drops are purged, delivered history
// is kept.
func (s *service) Cancel(ctx context.Context, shopID, id uuid.UUID) (*models.Subscription, error) {
	policy, err := s.settings.PolicyForShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if !policy.AllowCancel {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "shop does not allow cancelling subscriptions")
	}

	var subscription *models.Subscription

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sub, err := repo.FindByIDForUpdate(ctx, shopID, id)
		if err != nil {
			return asNotFound(err, "subscription not found")
		}
		if !sub.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already cancelled")
		}

		now := s.now().UTC()
		if err := repo.DeleteScheduled(ctx, sub.ID); err != nil {
			return err
		}
		sub.Active = false
		sub.Paused = false
		sub.EndDate = &now
		sub.NextDelivery = nil
		if err := repo.Update(ctx, sub); err != nil {
			return err
		}
		subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

// CatchUp rolls forward subscriptions whose next delivery slipped into the
// past, e.g. after downtime. Each subscription advances independently; one
// failure does not stop the sweep.
func (s *service) CatchUp(ctx context.Context, limit int) (int, error) {
	now := s.now().UTC()
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	var advanced int
	for i := range due {
		sub := due[i]
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			locked, err := repo.FindByIDForUpdate(ctx, sub.ShopID, sub.ID)
			if err != nil {
				return err
			}
			if !locked.Active || locked.Paused || locked.NextDelivery == nil || locked.NextDelivery.After(now) {
				return nil
			}

			if _, err := repo.MarkScheduledFailedBefore(ctx, locked.ID, now); err != nil {
				return err
			}
			next, err := ComputeNextDelivery(locked.Frequency, locked.DeliveryTime, locked.CustomDays, *locked.NextDelivery, now)
			if err != nil {
				return err
			}
			locked.NextDelivery = &next
			if _, err := s.materializeDelivery(ctx, repo, locked, next, now); err != nil {
				return err
			}
			return repo.Update(ctx, locked)
		})
		if err != nil {
			s.logError(ctx, sub.ID, "subscription catch-up failed", err)
			continue
		}
		advanced++
	}
	return advanced, nil
}

// materializeDelivery creates the SCHEDULED row for the computed instant when
// it falls within the window. Returns the row, or nil when out of range.
func (s *service) materializeDelivery(ctx context.Context, repo Repository, sub *models.Subscription, next time.Time, now time.Time) (*models.DeliverySchedule, error) {
	if next.Sub(now) > materializeWindow {
		return nil, nil
	}
	delivery := &models.DeliverySchedule{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		DeliveryDate:   next,
		ScheduledTime:  sub.DeliveryTime,
		Status:         enums.DeliveryStatusScheduled,
		Quantity:       sub.Quantity,
	}
	if err := repo.CreateDelivery(ctx, delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

// chargeBestEffort raises the auto-charge invoice for a completed delivery.
// Runs outside the completion transaction: a charge failure is logged, never
// surfaced to the caller.
func (s *service) chargeBestEffort(ctx context.Context, sub *models.Subscription, delivery *models.DeliverySchedule) {
	product, err := s.products.FindForShop(ctx, sub.ShopID, sub.ProductID)
	description := "subscription delivery"
	if err == nil {
		description = fmt.Sprintf("subscription delivery: %s", product.Name)
	}

	item := invoices.LineItemInput{Description: description}
	if delivery.ActualPrice != nil {
		item.Quantity = 1
		item.UnitPrice = *delivery.ActualPrice
	} else {
		item.Quantity = delivery.Quantity
		if delivery.ActualQuantity != nil {
			item.Quantity = *delivery.ActualQuantity
		}
		item.UnitPrice = sub.PricePerUnit
	}

	now := s.now().UTC()
	dueDate := now.Add(invoiceDueWindow)
	subscriptionID := sub.ID
	_, err = s.invoices.Create(ctx, sub.ShopID, invoices.CreateInvoiceInput{
		CustomerID:     sub.CustomerID,
		SubscriptionID: &subscriptionID,
		Items:          []invoices.LineItemInput{item},
		DueDate:        &dueDate,
		MarkSent:       true,
	})
	if err != nil {
		s.logError(ctx, sub.ID, "auto-charge failed", err)
		return
	}

	sub.LastCharged = &now
	if err := s.repo.Update(ctx, sub); err != nil {
		s.logError(ctx, sub.ID, "recording last charge failed", err)
	}
}

func (s *service) logError(ctx context.Context, subscriptionID uuid.UUID, message string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"subscription_id": subscriptionID.String()})
	s.logg.Error(logCtx, message, err)
}

func (s *service) emitScheduled(ctx context.Context, tx *gorm.DB, sub *models.Subscription, customer *models.Customer, next time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventTypeDeliveryScheduled,
		AggregateType: enums.OutboxAggregateTypeSubscription,
		AggregateID:   sub.ID,
		ShopID:        sub.ShopID,
		Recipient:     customer.Phone,
		Data: map[string]any{
			"productId":    sub.ProductID,
			"quantity":     sub.Quantity,
			"frequency":    sub.Frequency,
			"nextDelivery": next,
		},
	})
}

func (s *service) emitCompleted(ctx context.Context, tx *gorm.DB, sub *models.Subscription, delivery *models.DeliverySchedule) error {
	customer, err := s.customers.FindForShop(ctx, sub.ShopID, sub.CustomerID)
	if err != nil {
		return asNotFound(err, "customer not found")
	}
	quantity := delivery.Quantity
	if delivery.ActualQuantity != nil {
		quantity = *delivery.ActualQuantity
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.OutboxEventTypeDeliveryCompleted,
		AggregateType: enums.OutboxAggregateTypeDelivery,
		AggregateID:   delivery.ID,
		ShopID:        sub.ShopID,
		Recipient:     customer.Phone,
		Data: map[string]any{
			"subscriptionId": sub.ID,
			"quantity":       quantity,
			"deliveredAt":    delivery.DeliveredAt,
		},
	})
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
