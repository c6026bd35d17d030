package products

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

// Service defines the catalog surface.
type Service interface {
	Create(ctx context.Context, shopID uuid.UUID, input CreateProductInput) (*models.Product, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Product, error)
	FindForShop(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, shopID, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	List(ctx context.Context, shopID uuid.UUID, query ListQuery) (*ListResult, error)
	AdjustStock(ctx context.Context, shopID, id uuid.UUID, delta int) (*models.Product, error)
	AdjustStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) (bool, error)
}

// ServiceParams groups dependencies for the product service.
type ServiceParams struct {
	Repo Repository
}

// CreateProductInput captures a new catalog item.
type CreateProductInput struct {
	Name       string
	Unit       string
	Price      decimal.Decimal
	StockQty   int
	Categories []string
}

// UpdateProductInput carries the editable fields; nil means unchanged.
type UpdateProductInput struct {
	Name       *string
	Unit       *string
	Price      *decimal.Decimal
	Categories []string
	Active     *bool
}

type service struct {
	repo Repository
}

// NewService builds a product service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	return &service{repo: params.Repo}, nil
}

func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if shopID == uuid.Nil || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and product name are required")
	}
	if input.Price.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.StockQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}

	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = "pcs"
	}
	product := &models.Product{
		ID:         uuid.New(),
		ShopID:     shopID,
		Name:       name,
		Unit:       unit,
		Price:      input.Price,
		StockQty:   input.StockQty,
		Categories: input.Categories,
		Active:     true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "product not found")
	}
	return product, nil
}

// FindForShop is the lookup other domain services depend on.
func (s *service) FindForShop(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	return s.repo.FindByID(ctx, shopID, productID)
}

func (s *service) Update(ctx context.Context, shopID, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "product not found")
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name must not be empty")
		}
		product.Name = name
	}
	if input.Unit != nil && strings.TrimSpace(*input.Unit) != "" {
		product.Unit = strings.TrimSpace(*input.Unit)
	}
	if input.Price != nil {
		if input.Price.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		product.Price = *input.Price
	}
	if input.Categories != nil {
		product.Categories = input.Categories
	}
	if input.Active != nil {
		product.Active = *input.Active
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, query ListQuery) (*ListResult, error) {
	return s.repo.List(ctx, shopID, query)
}

// AdjustStock applies a manual correction (restock or shrinkage).
func (s *service) AdjustStock(ctx context.Context, shopID, id uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock adjustment must not be zero")
	}
	product, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "product not found")
	}
	ok, err := s.repo.AdjustStock(ctx, product.ID, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock for adjustment")
	}
	return s.repo.FindByID(ctx, shopID, id)
}

// AdjustStockTx applies a stock delta inside the caller's transaction, for
// order placement and cancellation. Returns false when stock is insufficient.
func (s *service) AdjustStockTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "stock mutation requires a transaction")
	}
	return s.repo.WithTx(tx).AdjustStock(ctx, productID, delta)
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
