package coupons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

type fakeRepo struct {
	coupons     map[uuid.UUID]*models.Coupon
	redemptions []models.CouponRedemption
	createErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{coupons: map[uuid.UUID]*models.Coupon{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, coupon *models.Coupon) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *coupon
	f.coupons[coupon.ID] = &cp
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, shopID, id uuid.UUID) (*models.Coupon, error) {
	coupon, ok := f.coupons[id]
	if !ok || coupon.ShopID != shopID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *coupon
	return &cp, nil
}

func (f *fakeRepo) FindByCode(ctx context.Context, shopID uuid.UUID, code string) (*models.Coupon, error) {
	for _, coupon := range f.coupons {
		if coupon.ShopID == shopID && coupon.Code == code {
			cp := *coupon
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) Update(ctx context.Context, coupon *models.Coupon) error {
	cp := *coupon
	f.coupons[coupon.ID] = &cp
	return nil
}

func (f *fakeRepo) List(ctx context.Context, shopID uuid.UUID, activeOnly bool, limit int) ([]models.Coupon, error) {
	var rows []models.Coupon
	for _, coupon := range f.coupons {
		if coupon.ShopID != shopID {
			continue
		}
		if activeOnly && !coupon.Active {
			continue
		}
		rows = append(rows, *coupon)
	}
	return rows, nil
}

func (f *fakeRepo) InsertRedemption(ctx context.Context, redemption *models.CouponRedemption) error {
	f.redemptions = append(f.redemptions, *redemption)
	return nil
}

func (f *fakeRepo) CountRedemptionsByCustomer(ctx context.Context, couponID, customerID uuid.UUID) (int64, error) {
	var count int64
	for _, redemption := range f.redemptions {
		if redemption.CouponID == couponID && redemption.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) IncrementUsage(ctx context.Context, couponID uuid.UUID, usageLimit int) (bool, error) {
	coupon, ok := f.coupons[couponID]
	if !ok {
		return false, nil
	}
	if usageLimit > 0 && coupon.UsedCount >= usageLimit {
		return false, nil
	}
	coupon.UsedCount++
	return true, nil
}

type fakeSettings struct {
	policy models.Policy
}

func (f *fakeSettings) PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error) {
	return f.policy, nil
}

var testNow = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

func testService(t *testing.T, repo *fakeRepo, couponsEnabled bool) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Settings: &fakeSettings{policy: models.Policy{CouponsEnabled: couponsEnabled}},
	})
	require.NoError(t, err)
	svc.(*service).now = func() time.Time { return testNow }
	return svc
}

func seedCoupon(repo *fakeRepo, shopID uuid.UUID, mutate func(*models.Coupon)) *models.Coupon {
	coupon := &models.Coupon{
		ID:         uuid.New(),
		ShopID:     shopID,
		Code:       "SAVE10",
		Type:       enums.CouponTypePercent,
		Value:      decimal.NewFromInt(10),
		ValidFrom:  testNow.AddDate(0, 0, -1),
		ValidUntil: testNow.AddDate(0, 0, 30),
		Active:     true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	repo.coupons[coupon.ID] = coupon
	return coupon
}

func TestCreateNormalizesAndValidates(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo, true)
	shopID := uuid.New()

	coupon, err := svc.Create(context.Background(), shopID, CreateCouponInput{
		Code:       " save10 ",
		Type:       enums.CouponTypePercent,
		Value:      decimal.NewFromInt(10),
		ValidFrom:  testNow,
		ValidUntil: testNow.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", coupon.Code)
	assert.True(t, coupon.Active)

	_, err = svc.Create(context.Background(), shopID, CreateCouponInput{
		Code:       "OVER",
		Type:       enums.CouponTypePercent,
		Value:      decimal.NewFromInt(150),
		ValidFrom:  testNow,
		ValidUntil: testNow.AddDate(0, 1, 0),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(context.Background(), shopID, CreateCouponInput{
		Code:       "BACKWARDS",
		Type:       enums.CouponTypeFixed,
		Value:      decimal.NewFromInt(50),
		ValidFrom:  testNow.AddDate(0, 1, 0),
		ValidUntil: testNow,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = errors.New(`duplicate key value violates unique constraint "idx_coupons_shop_code"`)
	svc := testService(t, repo, true)

	_, err := svc.Create(context.Background(), uuid.New(), CreateCouponInput{
		Code:       "SAVE10",
		Type:       enums.CouponTypeFixed,
		Value:      decimal.NewFromInt(20),
		ValidFrom:  testNow,
		ValidUntil: testNow.AddDate(0, 1, 0),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestComputeDiscount(t *testing.T) {
	cap50 := decimal.NewFromInt(50)
	cases := []struct {
		name   string
		coupon models.Coupon
		amount int64
		want   string
	}{
		{
			name:   "percent",
			coupon: models.Coupon{Type: enums.CouponTypePercent, Value: decimal.NewFromInt(10)},
			amount: 500,
			want:   "50",
		},
		{
			name:   "percent capped",
			coupon: models.Coupon{Type: enums.CouponTypePercent, Value: decimal.NewFromInt(20), MaxDiscount: &cap50},
			amount: 1000,
			want:   "50",
		},
		{
			name:   "fixed",
			coupon: models.Coupon{Type: enums.CouponTypeFixed, Value: decimal.NewFromInt(30)},
			amount: 200,
			want:   "30",
		},
		{
			name:   "fixed never exceeds order",
			coupon: models.Coupon{Type: enums.CouponTypeFixed, Value: decimal.NewFromInt(300)},
			amount: 200,
			want:   "200",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiscount(&tc.coupon, decimal.NewFromInt(tc.amount))
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s", got)
		})
	}
}

func TestValidateEnforcesPolicyWindowAndCaps(t *testing.T) {
	repo := newFakeRepo()
	shopID := uuid.New()
	customerID := uuid.New()

	svc := testService(t, repo, false)
	seedCoupon(repo, shopID, nil)
	_, err := svc.Validate(context.Background(), shopID, "SAVE10", customerID, decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation), "coupons disabled")

	svc = testService(t, repo, true)

	quote, err := svc.Validate(context.Background(), shopID, "SAVE10", customerID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, quote.Discount.Equal(decimal.NewFromInt(50)))

	seedCoupon(repo, shopID, func(c *models.Coupon) {
		c.Code = "EXPIRED"
		c.ValidUntil = testNow.AddDate(0, 0, -1)
	})
	_, err = svc.Validate(context.Background(), shopID, "EXPIRED", customerID, decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))

	seedCoupon(repo, shopID, func(c *models.Coupon) {
		c.Code = "BIGONLY"
		c.MinOrderAmount = decimal.NewFromInt(1000)
	})
	_, err = svc.Validate(context.Background(), shopID, "BIGONLY", customerID, decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))

	seedCoupon(repo, shopID, func(c *models.Coupon) {
		c.Code = "SPENT"
		c.UsageLimit = 5
		c.UsedCount = 5
	})
	_, err = svc.Validate(context.Background(), shopID, "SPENT", customerID, decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))

	_, err = svc.Validate(context.Background(), shopID, "NOSUCH", customerID, decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRedeemConsumesUsageAndRecordsRedemption(t *testing.T) {
	repo := newFakeRepo()
	shopID := uuid.New()
	customerID := uuid.New()
	orderID := uuid.New()
	coupon := seedCoupon(repo, shopID, func(c *models.Coupon) {
		c.UsageLimit = 2
		c.PerCustomerCap = 1
	})
	svc := testService(t, repo, true)

	quote, err := svc.Redeem(context.Background(), &gorm.DB{}, shopID, "SAVE10", customerID, orderID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, quote.Discount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, repo.coupons[coupon.ID].UsedCount)
	require.Len(t, repo.redemptions, 1)
	assert.Equal(t, orderID, repo.redemptions[0].OrderID)

	// same customer blocked by the per-customer cap
	_, err = svc.Redeem(context.Background(), &gorm.DB{}, shopID, "SAVE10", customerID, uuid.New(), decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))

	// another customer consumes the last use
	_, err = svc.Redeem(context.Background(), &gorm.DB{}, shopID, "SAVE10", uuid.New(), uuid.New(), decimal.NewFromInt(500))
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), &gorm.DB{}, shopID, "SAVE10", uuid.New(), uuid.New(), decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePolicyViolation))
}

func TestRedeemRequiresTransaction(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(t, repo, true)

	_, err := svc.Redeem(context.Background(), nil, uuid.New(), "SAVE10", uuid.New(), uuid.New(), decimal.NewFromInt(500))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}
