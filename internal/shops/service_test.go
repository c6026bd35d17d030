package shops

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
)

type fakeRepo struct {
	shops    map[uuid.UUID]*models.Shop
	settings map[uuid.UUID]*models.ShopSettings
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		shops:    map[uuid.UUID]*models.Shop{},
		settings: map[uuid.UUID]*models.ShopSettings{},
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, shop *models.Shop) error {
	cp := *shop
	f.shops[shop.ID] = &cp
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	shop, ok := f.shops[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *shop
	return &cp, nil
}

func (f *fakeRepo) FindBySlug(ctx context.Context, slug string) (*models.Shop, error) {
	for _, shop := range f.shops {
		if shop.Slug == slug {
			cp := *shop
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	var rows []models.Shop
	for _, shop := range f.shops {
		if shop.OwnerID == ownerID {
			rows = append(rows, *shop)
		}
	}
	return rows, nil
}

func (f *fakeRepo) Update(ctx context.Context, shop *models.Shop) error {
	cp := *shop
	f.shops[shop.ID] = &cp
	return nil
}

func (f *fakeRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	for _, shop := range f.shops {
		if shop.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CreateSettings(ctx context.Context, settings *models.ShopSettings) error {
	cp := *settings
	f.settings[settings.ShopID] = &cp
	return nil
}

func (f *fakeRepo) FindSettings(ctx context.Context, shopID uuid.UUID) (*models.ShopSettings, error) {
	settings, ok := f.settings[shopID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *settings
	return &cp, nil
}

func (f *fakeRepo) UpdateSettings(ctx context.Context, settings *models.ShopSettings) error {
	cp := *settings
	f.settings[settings.ShopID] = &cp
	return nil
}

type fakeOwners struct {
	created []*models.User
}

func (f *fakeOwners) CreateOwnerTx(ctx context.Context, tx *gorm.DB, name, phone, password string) (*models.User, error) {
	user := &models.User{ID: uuid.New(), Name: name, Phone: phone, Active: true}
	f.created = append(f.created, user)
	return user, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func testService(t *testing.T, repo *fakeRepo) (Service, *fakeOwners) {
	t.Helper()
	owners := &fakeOwners{}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		Owners:            owners,
		TransactionRunner: fakeTxRunner{},
		BaseURL:           "https://kirana.example",
	})
	require.NoError(t, err)
	return svc, owners
}

func registerInput() RegisterShopInput {
	return RegisterShopInput{
		OwnerName: "Ramesh Gupta",
		Phone:     "+919812345678",
		Password:  "s3cret-pass",
		ShopName:  "Gupta General Store",
		Address:   "12 MG Road, Pune",
	}
}

func TestRegisterCreatesOwnerShopAndSettings(t *testing.T) {
	repo := newFakeRepo()
	svc, owners := testService(t, repo)

	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.Len(t, owners.created, 1)
	assert.Equal(t, owners.created[0].ID, result.Shop.OwnerID)
	assert.Equal(t, "gupta-general-store", result.Shop.Slug)
	assert.True(t, result.Shop.Active)

	settings, ok := repo.settings[result.Shop.ID]
	require.True(t, ok, "default settings created")
	assert.True(t, settings.AllowPause)
	assert.True(t, settings.AllowCancel)
	assert.Equal(t, 30, settings.GracePeriodDays)
	assert.True(t, settings.CouponsEnabled)
	assert.True(t, settings.LoyaltyEnabled)
}

func TestRegisterResolvesSlugCollision(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := testService(t, repo)

	first, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	input := registerInput()
	input.Phone = "+919812345679"
	second, err := svc.Register(context.Background(), input)
	require.NoError(t, err)

	assert.NotEqual(t, first.Shop.Slug, second.Shop.Slug)
	assert.Contains(t, second.Shop.Slug, "gupta-general-store-")
}

func TestRegisterValidatesInput(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := testService(t, repo)
	ctx := context.Background()

	input := registerInput()
	input.Password = "short"
	_, err := svc.Register(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "weak password")

	input = registerInput()
	input.ShopName = "   "
	_, err = svc.Register(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "blank shop name")

	input = registerInput()
	input.ShopName = "!!!"
	_, err = svc.Register(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "unsluggable shop name")
}

func TestGetBySlugHidesInactiveShops(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := testService(t, repo)

	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	found, err := svc.GetBySlug(context.Background(), " Gupta-General-Store ")
	require.NoError(t, err)
	assert.Equal(t, result.Shop.ID, found.ID)

	repo.shops[result.Shop.ID].Active = false
	_, err = svc.GetBySlug(context.Background(), "gupta-general-store")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateSettingsAppliesPartialChanges(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := testService(t, repo)

	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	allowPause := false
	minScore := 40
	limit := decimal.NewFromInt(2000)
	updated, err := svc.UpdateSettings(context.Background(), result.Shop.ID, UpdateSettingsInput{
		AllowPause:         &allowPause,
		MinCreditScore:     &minScore,
		DefaultCreditLimit: &limit,
	})
	require.NoError(t, err)

	assert.False(t, updated.AllowPause)
	assert.True(t, updated.AllowCancel, "untouched field keeps its value")
	assert.Equal(t, 40, updated.MinCreditScore)
	assert.True(t, updated.DefaultCreditLimit.Equal(limit))

	badScore := 140
	_, err = svc.UpdateSettings(context.Background(), result.Shop.ID, UpdateSettingsInput{MinCreditScore: &badScore})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPolicyForShopReflectsSettings(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := testService(t, repo)

	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	loyalty := false
	_, err = svc.UpdateSettings(context.Background(), result.Shop.ID, UpdateSettingsInput{LoyaltyEnabled: &loyalty})
	require.NoError(t, err)

	policy, err := svc.PolicyForShop(context.Background(), result.Shop.ID)
	require.NoError(t, err)
	assert.False(t, policy.LoyaltyEnabled)
	assert.True(t, policy.AllowPause)

	_, err = svc.PolicyForShop(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStorefrontQRRendersPNG(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := testService(t, repo)

	result, err := svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	png, url, err := svc.StorefrontQR(context.Background(), result.Shop.ID, 256)
	require.NoError(t, err)
	assert.Equal(t, "https://kirana.example/store/gupta-general-store", url)
	require.NotEmpty(t, png)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "gupta-general-store", slugify("Gupta General Store"))
	assert.Equal(t, "sharma-co", slugify("  Sharma & Co.  "))
	assert.Equal(t, "dukaan-24x7", slugify("Dukaan 24x7!"))
	assert.Equal(t, "", slugify("!!!"))
}
