package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

type settingsProvider interface {
	PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error)
}

// Service defines the coupon surface.
type Service interface {
	Create(ctx context.Context, shopID uuid.UUID, input CreateCouponInput) (*models.Coupon, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error)
	List(ctx context.Context, shopID uuid.UUID, activeOnly bool, limit int) ([]models.Coupon, error)
	Deactivate(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error)
	Validate(ctx context.Context, shopID uuid.UUID, code string, customerID uuid.UUID, orderAmount decimal.Decimal) (*Quote, error)
	Redeem(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, code string, customerID, orderID uuid.UUID, orderAmount decimal.Decimal) (*Quote, error)
}

// ServiceParams groups dependencies for the coupon service.
type ServiceParams struct {
	Repo     Repository
	Settings settingsProvider
}

// CreateCouponInput captures a new discount code.
type CreateCouponInput struct {
	Code           string
	Type           enums.CouponType
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    *decimal.Decimal
	UsageLimit     int
	PerCustomerCap int
	ValidFrom      time.Time
	ValidUntil     time.Time
}

// Quote is the result of validating a code against an order amount.
type Quote struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

type service struct {
	repo     Repository
	settings settingsProvider
	now      func() time.Time
}

// NewService builds a coupon service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	return &service{
		repo:     params.Repo,
		settings: params.Settings,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, shopID uuid.UUID, input CreateCouponInput) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if shopID == uuid.Nil || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and coupon code are required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown coupon type %q", input.Type))
	}
	if input.Value.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon value must be positive")
	}
	if input.Type == enums.CouponTypePercent && input.Value.GreaterThan(oneHundred) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percent coupons cannot exceed 100")
	}
	if input.MinOrderAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount must not be negative")
	}
	if input.MaxDiscount != nil && input.MaxDiscount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "maximum discount must be positive")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity window must end after it starts")
	}
	if input.UsageLimit < 0 || input.PerCustomerCap < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage caps must not be negative")
	}

	coupon := &models.Coupon{
		ID:             uuid.New(),
		ShopID:         shopID,
		Code:           code,
		Type:           input.Type,
		Value:          input.Value,
		MinOrderAmount: input.MinOrderAmount,
		MaxDiscount:    input.MaxDiscount,
		UsageLimit:     input.UsageLimit,
		PerCustomerCap: input.PerCustomerCap,
		ValidFrom:      input.ValidFrom,
		ValidUntil:     input.ValidUntil,
		Active:         true,
	}
	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "idx_coupons_shop_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("coupon code %s already exists", code))
		}
		return nil, err
	}
	return coupon, nil
}

func (s *service) Get(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "coupon not found")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, activeOnly bool, limit int) ([]models.Coupon, error) {
	return s.repo.List(ctx, shopID, activeOnly, limit)
}

func (s *service) Deactivate(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, shopID, id)
	if err != nil {
		return nil, asNotFound(err, "coupon not found")
	}
	if !coupon.Active {
		return coupon, nil
	}
	coupon.Active = false
	if err := s.repo.Update(ctx, coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Validate checks a code against the shop policy, the coupon's window and
// caps, and quotes the discount without consuming a use.
func (s *service) Validate(ctx context.Context, shopID uuid.UUID, code string, customerID uuid.UUID, orderAmount decimal.Decimal) (*Quote, error) {
	return s.validate(ctx, s.repo, shopID, code, customerID, orderAmount)
}

// Redeem validates and consumes one use inside the caller's transaction,
// recording the redemption against the order.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, code string, customerID, orderID uuid.UUID, orderAmount decimal.Decimal) (*Quote, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redeem requires a transaction")
	}
	repo := s.repo.WithTx(tx)

	quote, err := s.validate(ctx, repo, shopID, code, customerID, orderAmount)
	if err != nil {
		return nil, err
	}

	bumped, err := repo.IncrementUsage(ctx, quote.Coupon.ID, quote.Coupon.UsageLimit)
	if err != nil {
		return nil, err
	}
	if !bumped {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon usage limit reached")
	}

	err = repo.InsertRedemption(ctx, &models.CouponRedemption{
		ID:         uuid.New(),
		CouponID:   quote.Coupon.ID,
		OrderID:    orderID,
		CustomerID: customerID,
		Discount:   quote.Discount,
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *service) validate(ctx context.Context, repo Repository, shopID uuid.UUID, code string, customerID uuid.UUID, orderAmount decimal.Decimal) (*Quote, error) {
	policy, err := s.settings.PolicyForShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if !policy.CouponsEnabled {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "shop does not accept coupons")
	}

	coupon, err := repo.FindByCode(ctx, shopID, code)
	if err != nil {
		return nil, asNotFound(err, "coupon not found")
	}
	if !coupon.Active {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon is no longer active")
	}

	now := s.now().UTC()
	if now.Before(coupon.ValidFrom) || now.After(coupon.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon is outside its validity window")
	}
	if orderAmount.LessThan(coupon.MinOrderAmount) {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation,
			fmt.Sprintf("order must be at least %s to use %s", coupon.MinOrderAmount, coupon.Code))
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon usage limit reached")
	}
	if coupon.PerCustomerCap > 0 {
		used, err := repo.CountRedemptionsByCustomer(ctx, coupon.ID, customerID)
		if err != nil {
			return nil, err
		}
		if used >= int64(coupon.PerCustomerCap) {
			return nil, pkgerrors.New(pkgerrors.CodePolicyViolation, "coupon already used by this customer")
		}
	}

	return &Quote{Coupon: coupon, Discount: ComputeDiscount(coupon, orderAmount)}, nil
}

// ComputeDiscount applies the coupon's discount rule to an order amount.
// Percent coupons honor the optional max-discount cap; the result never
// exceeds the order amount.
func ComputeDiscount(coupon *models.Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.Type {
	case enums.CouponTypePercent:
		discount = orderAmount.Mul(coupon.Value).Div(oneHundred)
		if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
			discount = *coupon.MaxDiscount
		}
	case enums.CouponTypeFixed:
		discount = coupon.Value
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(orderAmount) {
		discount = orderAmount
	}
	return discount.Round(2)
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
