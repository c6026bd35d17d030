package shops

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahq/kirana-backend/pkg/db/models"
)

// Repository handles shop and shop-settings persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, shop *models.Shop) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindBySlug(ctx context.Context, slug string) (*models.Shop, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error)
	Update(ctx context.Context, shop *models.Shop) error
	SlugExists(ctx context.Context, slug string) (bool, error)

	CreateSettings(ctx context.Context, settings *models.ShopSettings) error
	FindSettings(ctx context.Context, shopID uuid.UUID) (*models.ShopSettings, error)
	UpdateSettings(ctx context.Context, settings *models.ShopSettings) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shop repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&shops).Error
	return shops, err
}

func (r *repository) Update(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Save(shop).Error
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateSettings(ctx context.Context, settings *models.ShopSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *repository) FindSettings(ctx context.Context, shopID uuid.UUID) (*models.ShopSettings, error) {
	var settings models.ShopSettings
	if err := r.db.WithContext(ctx).First(&settings, "shop_id = ?", shopID).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *repository) UpdateSettings(ctx context.Context, settings *models.ShopSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
