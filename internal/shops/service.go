package shops

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/qr"
)

const slugAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ownerCreator interface {
	CreateOwnerTx(ctx context.Context, tx *gorm.DB, name, phone, password string) (*models.User, error)
}

// Service exposes shop registration, the public storefront surface and the
// per-shop policy every domain service consumes.
type Service interface {
	Register(ctx context.Context, input RegisterShopInput) (*RegisterResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	GetBySlug(ctx context.Context, slug string) (*models.Shop, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error)
	Update(ctx context.Context, shopID uuid.UUID, input UpdateShopInput) (*models.Shop, error)
	Settings(ctx context.Context, shopID uuid.UUID) (*models.ShopSettings, error)
	UpdateSettings(ctx context.Context, shopID uuid.UUID, input UpdateSettingsInput) (*models.ShopSettings, error)
	PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error)
	StorefrontQR(ctx context.Context, shopID uuid.UUID, size int) ([]byte, string, error)
}

// ServiceParams groups dependencies for the shop service.
type ServiceParams struct {
	Repo              Repository
	Owners            ownerCreator
	TransactionRunner txRunner
	BaseURL           string
}

// RegisterShopInput creates the owner account, the shop and its default
// settings together.
type RegisterShopInput struct {
	OwnerName  string
	Phone      string
	Password   string
	ShopName   string
	Address    string
	Categories []string
}

// RegisterResult is what a fresh registration hands back.
type RegisterResult struct {
	Owner *models.User
	Shop  *models.Shop
}

// UpdateShopInput carries optional shop profile changes.
type UpdateShopInput struct {
	Name       *string
	Address    *string
	Phone      *string
	Categories []string
	Active     *bool
}

// UpdateSettingsInput carries optional policy changes.
type UpdateSettingsInput struct {
	AllowPause         *bool
	AllowCancel        *bool
	MinCreditScore     *int
	GracePeriodDays    *int
	DefaultCreditLimit *decimal.Decimal
	CouponsEnabled     *bool
	LoyaltyEnabled     *bool
}

type service struct {
	repo     Repository
	owners   ownerCreator
	txRunner txRunner
	baseURL  string
}

// NewService builds a shop service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Owners == nil {
		return nil, errors.New("owner creator is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if strings.TrimSpace(params.BaseURL) == "" {
		return nil, errors.New("base url is required")
	}
	return &service{
		repo:     params.Repo,
		owners:   params.Owners,
		txRunner: params.TransactionRunner,
		baseURL:  params.BaseURL,
	}, nil
}

// Register creates the owner user, the shop and its default settings in one
// transaction. The slug is derived from the shop name and retried with a
// random suffix on collision.
func (s *service) Register(ctx context.Context, input RegisterShopInput) (*RegisterResult, error) {
	ownerName := strings.TrimSpace(input.OwnerName)
	phone := strings.TrimSpace(input.Phone)
	shopName := strings.TrimSpace(input.ShopName)

	if ownerName == "" || phone == "" || shopName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner name, phone and shop name are required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	slug, err := s.newSlug(ctx, shopName)
	if err != nil {
		return nil, err
	}

	var result RegisterResult

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		owner, err := s.owners.CreateOwnerTx(ctx, tx, ownerName, phone, input.Password)
		if err != nil {
			return err
		}

		shop := &models.Shop{
			ID:         uuid.New(),
			OwnerID:    owner.ID,
			Name:       shopName,
			Slug:       slug,
			Address:    strings.TrimSpace(input.Address),
			Phone:      phone,
			Categories: pq.StringArray(input.Categories),
			Active:     true,
		}
		if err := repo.Create(ctx, shop); err != nil {
			if db.IsUniqueViolation(err, "idx_shops_slug") {
				return pkgerrors.New(pkgerrors.CodeConflict, "shop slug already taken")
			}
			return err
		}

		settings := defaultSettings(shop.ID)
		if err := repo.CreateSettings(ctx, settings); err != nil {
			return err
		}

		result = RegisterResult{Owner: owner, Shop: shop}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	shop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "shop not found")
	}
	return shop, nil
}

// GetBySlug resolves the public storefront. Deactivated shops are invisible
// to shoppers.
func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Shop, error) {
	shop, err := s.repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, asNotFound(err, "shop not found")
	}
	if !shop.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	return shop, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

func (s *service) Update(ctx context.Context, shopID uuid.UUID, input UpdateShopInput) (*models.Shop, error) {
	shop, err := s.repo.FindByID(ctx, shopID)
	if err != nil {
		return nil, asNotFound(err, "shop not found")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name cannot be empty")
		}
		shop.Name = name
	}
	if input.Address != nil {
		shop.Address = strings.TrimSpace(*input.Address)
	}
	if input.Phone != nil {
		phone := strings.TrimSpace(*input.Phone)
		if phone == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop phone cannot be empty")
		}
		shop.Phone = phone
	}
	if input.Categories != nil {
		shop.Categories = pq.StringArray(input.Categories)
	}
	if input.Active != nil {
		shop.Active = *input.Active
	}

	if err := s.repo.Update(ctx, shop); err != nil {
		return nil, err
	}
	return shop, nil
}

func (s *service) Settings(ctx context.Context, shopID uuid.UUID) (*models.ShopSettings, error) {
	settings, err := s.repo.FindSettings(ctx, shopID)
	if err != nil {
		return nil, asNotFound(err, "shop settings not found")
	}
	return settings, nil
}

func (s *service) UpdateSettings(ctx context.Context, shopID uuid.UUID, input UpdateSettingsInput) (*models.ShopSettings, error) {
	settings, err := s.repo.FindSettings(ctx, shopID)
	if err != nil {
		return nil, asNotFound(err, "shop settings not found")
	}

	if input.AllowPause != nil {
		settings.AllowPause = *input.AllowPause
	}
	if input.AllowCancel != nil {
		settings.AllowCancel = *input.AllowCancel
	}
	if input.MinCreditScore != nil {
		if *input.MinCreditScore < 0 || *input.MinCreditScore > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum credit score must be between 0 and 100")
		}
		settings.MinCreditScore = *input.MinCreditScore
	}
	if input.GracePeriodDays != nil {
		if *input.GracePeriodDays < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "grace period days cannot be negative")
		}
		settings.GracePeriodDays = *input.GracePeriodDays
	}
	if input.DefaultCreditLimit != nil {
		if input.DefaultCreditLimit.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "default credit limit cannot be negative")
		}
		settings.DefaultCreditLimit = *input.DefaultCreditLimit
	}
	if input.CouponsEnabled != nil {
		settings.CouponsEnabled = *input.CouponsEnabled
	}
	if input.LoyaltyEnabled != nil {
		settings.LoyaltyEnabled = *input.LoyaltyEnabled
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// PolicyForShop is the policy read every domain operation starts from.
func (s *service) PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error) {
	settings, err := s.repo.FindSettings(ctx, shopID)
	if err != nil {
		return models.Policy{}, asNotFound(err, "shop settings not found")
	}
	return settings.Policy(), nil
}

// StorefrontQR renders the printable PNG pointing at the shop's public page.
func (s *service) StorefrontQR(ctx context.Context, shopID uuid.UUID, size int) ([]byte, string, error) {
	shop, err := s.repo.FindByID(ctx, shopID)
	if err != nil {
		return nil, "", asNotFound(err, "shop not found")
	}

	url, err := qr.StorefrontURL(s.baseURL, shop.Slug)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building storefront url")
	}
	png, err := qr.EncodePNG(url, size)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rendering storefront qr")
	}
	return png, url, nil
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowers the name and collapses everything non-alphanumeric into
// single hyphens.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStrip.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (s *service) newSlug(ctx context.Context, shopName string) (string, error) {
	base := slugify(shopName)
	if base == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shop name must contain letters or digits")
	}

	candidate := base
	for i := 0; i < slugAttempts; i++ {
		exists, err := s.repo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
		candidate = fmt.Sprintf("%s-%s", base, suffix)
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique shop slug")
}

func defaultSettings(shopID uuid.UUID) *models.ShopSettings {
	return &models.ShopSettings{
		ID:              uuid.New(),
		ShopID:          shopID,
		AllowPause:      true,
		AllowCancel:     true,
		GracePeriodDays: 30,
		CouponsEnabled:  true,
		LoyaltyEnabled:  true,
	}
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
