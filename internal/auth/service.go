package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/kiranahq/kirana-backend/pkg/auth"
	"github.com/kiranahq/kirana-backend/pkg/auth/session"
	"github.com/kiranahq/kirana-backend/pkg/config"
	"github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

type shopLister interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// Service authenticates shop owners and manages their sessions.
type Service interface {
	// CreateOwnerTx creates the owner account inside the caller's
	// transaction so shop registration stays atomic.
	CreateOwnerTx(ctx context.Context, tx *gorm.DB, name, phone, password string) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, claims *pkgauth.AccessTokenClaims, refreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Repo           Repository
	Shops          shopLister
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

// LoginInput captures the owner credentials.
type LoginInput struct {
	Phone    string
	Password string
}

// LoginResult carries the token pair plus what the dashboard renders first.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
	Shops        []models.Shop
}

type service struct {
	repo        Repository
	shops       shopLister
	sessions    sessionManager
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Shops == nil {
		return nil, errors.New("shop lister is required")
	}
	if params.SessionManager == nil {
		return nil, errors.New("session manager is required")
	}
	return &service{
		repo:        params.Repo,
		shops:       params.Shops,
		sessions:    params.SessionManager,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		now:         time.Now,
	}, nil
}

func (s *service) CreateOwnerTx(ctx context.Context, tx *gorm.DB, name, phone, password string) (*models.User, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "owner creation requires a transaction")
	}
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner name and phone are required")
	}

	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Phone:        phone,
		Name:         name,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_phone") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "phone already registered")
		}
		return nil, err
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	user, err := s.authenticate(ctx, input.Phone, input.Password)
	if err != nil {
		return nil, err
	}

	shops, err := s.shops.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shops")
	}

	var shopID *uuid.UUID
	if len(shops) > 0 {
		id := shops[0].ID
		shopID = &id
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user.ID, shopID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		Shops:        shops,
	}, nil
}

// Refresh rotates the redis session tied to the presented access token and
// mints a fresh pair carrying the same identity.
func (s *service) Refresh(ctx context.Context, claims *pkgauth.AccessTokenClaims, refreshToken string) (*LoginResult, error) {
	if claims == nil || claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, asUnauthorized(err)
	}
	if !user.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rotate session")
	}

	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		ShopID: claims.ShopID,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		User:         user,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access id is required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoke session")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, phone, password string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, asUnauthorized(err)
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.Active {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) issueTokens(ctx context.Context, userID uuid.UUID, shopID *uuid.UUID) (string, string, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgauth.AccessTokenPayload{
		UserID: userID,
		ShopID: shopID,
		JTI:    accessID,
	})
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refresh token")
	}
	return accessToken, refreshToken, nil
}

func asUnauthorized(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
}
