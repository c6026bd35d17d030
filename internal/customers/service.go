package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

// loyaltyDivisor converts delivered-order spend into points: one point per
// hundred spent, fractions dropped.
var loyaltyDivisor = decimal.NewFromInt(100)

type settingsProvider interface {
	PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error)
}

// Service defines the customer surface.
type Service interface {
	Create(ctx context.Context, shopID uuid.UUID, input CreateCustomerInput) (*models.Customer, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error)
	FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error)
	Update(ctx context.Context, shopID, id uuid.UUID, input UpdateCustomerInput) (*models.Customer, error)
	List(ctx context.Context, shopID uuid.UUID, search string, limit int) ([]models.Customer, error)
	RecordDeliveredOrder(ctx context.Context, tx *gorm.DB, shopID, customerID uuid.UUID, orderTotal decimal.Decimal) error
}

// ServiceParams groups dependencies for the customer service.
type ServiceParams struct {
	Repo     Repository
	Settings settingsProvider
}

// CreateCustomerInput captures a new shop customer.
type CreateCustomerInput struct {
	Phone   string
	Name    string
	Address string
}

// UpdateCustomerInput carries the editable fields; nil means unchanged.
type UpdateCustomerInput struct {
	Name    *string
	Address *string
	Active  *bool
}

type service struct {
	repo     Repository
	settings settingsProvider
}

// NewService builds a customer service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	return &service{repo: params.Repo, settings: params.Settings}, nil
}

func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateCustomerInput) (*models.Customer, error) {
	phone := strings.TrimSpace(input.Phone)
	name := strings.TrimSpace(input.Name)
	if shopID == uuid.Nil || phone == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id, phone and name are required")
	}

	customer := &models.Customer{
		ID:         uuid.New(),
		ShopID:     shopID,
		Phone:      phone,
		Name:       name,
		Address:    strings.TrimSpace(input.Address),
		TotalSpent: decimal.Zero,
		Active:     true,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "idx_customers_shop_phone") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "customer with this phone already exists")
		}
		return nil, err
	}
	return customer, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}
	return customer, nil
}

// FindForShop is the lookup other domain services depend on.
func (s *service) FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error) {
	return s.repo.FindByID(ctx, shopID, customerID)
}

func (s *service) Update(ctx context.Context, shopID, id uuid.UUID, input UpdateCustomerInput) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		customer.Name = name
	}
	if input.Address != nil {
		customer.Address = strings.TrimSpace(*input.Address)
	}
	if input.Active != nil {
		customer.Active = *input.Active
	}
	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, search string, limit int) ([]models.Customer, error) {
	return s.repo.List(ctx, shopID, search, limit)
}

// RecordDeliveredOrder bumps the lifetime stats and accrues loyalty points
// inside the caller's order-completion transaction.
func (s *service) RecordDeliveredOrder(ctx context.Context, tx *gorm.DB, shopID, customerID uuid.UUID, orderTotal decimal.Decimal) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "stats update requires a transaction")
	}
	policy, err := s.settings.PolicyForShop(ctx, shopID)
	if err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	customer, err := repo.FindByIDForUpdate(ctx, shopID, customerID)
	if err != nil {
		return asNotFound(err, "customer not found")
	}

	customer.TotalOrders++
	customer.TotalSpent = customer.TotalSpent.Add(orderTotal)
	if policy.LoyaltyEnabled {
		customer.LoyaltyPoints += int(orderTotal.Div(loyaltyDivisor).IntPart())
	}
	return repo.Update(ctx, customer)
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
