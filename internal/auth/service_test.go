package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgauth "github.com/kiranahq/kirana-backend/pkg/auth"
	"github.com/kiranahq/kirana-backend/pkg/auth/session"
	"github.com/kiranahq/kirana-backend/pkg/config"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "kirana-test",
	ExpirationMinutes: 15,
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type fakeRepo struct {
	users     map[uuid.UUID]*models.User
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[uuid.UUID]*models.User{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, user *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *fakeRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	for _, user := range f.users {
		if user.Phone == phone {
			cp := *user
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeShops struct {
	shops []models.Shop
}

func (f *fakeShops) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	return f.shops, nil
}

type fakeSessions struct {
	generated []string
	revoked   []string
	rotateErr error
}

func (f *fakeSessions) Generate(ctx context.Context, accessID string) (string, error) {
	f.generated = append(f.generated, accessID)
	return "refresh-" + accessID, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if f.rotateErr != nil {
		return "", "", f.rotateErr
	}
	newID := session.NewAccessID()
	return newID, "refresh-" + newID, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, accessID string) error {
	f.revoked = append(f.revoked, accessID)
	return nil
}

type deps struct {
	repo     *fakeRepo
	shops    *fakeShops
	sessions *fakeSessions
}

func testService(t *testing.T) (Service, *deps) {
	t.Helper()
	d := &deps{
		repo:     newFakeRepo(),
		shops:    &fakeShops{},
		sessions: &fakeSessions{},
	}
	svc, err := NewService(ServiceParams{
		Repo:           d.repo,
		Shops:          d.shops,
		SessionManager: d.sessions,
		JWTConfig:      testJWTConfig,
		PasswordConfig: testPasswordConfig,
	})
	require.NoError(t, err)
	return svc, d
}

func seedOwner(t *testing.T, repo *fakeRepo, phone, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordConfig)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Phone:        phone,
		Name:         "Ramesh Gupta",
		PasswordHash: hash,
		Active:       true,
	}
	repo.users[user.ID] = user
	return user
}

func TestLoginIssuesShopScopedToken(t *testing.T) {
	svc, d := testService(t)
	owner := seedOwner(t, d.repo, "+919812345678", "s3cret-pass")
	shopID := uuid.New()
	d.shops.shops = []models.Shop{{ID: shopID, OwnerID: owner.ID, Name: "Gupta General Store"}}

	result, err := svc.Login(context.Background(), LoginInput{Phone: "+919812345678", Password: "s3cret-pass"})
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, claims.UserID)
	require.NotNil(t, claims.ShopID)
	assert.Equal(t, shopID, *claims.ShopID)

	require.Len(t, d.sessions.generated, 1)
	assert.Equal(t, claims.ID, d.sessions.generated[0])
	assert.Equal(t, "refresh-"+claims.ID, result.RefreshToken)
	assert.Len(t, result.Shops, 1)
}

func TestLoginWithoutShopsOmitsShopClaim(t *testing.T) {
	svc, d := testService(t)
	seedOwner(t, d.repo, "+919812345678", "s3cret-pass")

	result, err := svc.Login(context.Background(), LoginInput{Phone: "+919812345678", Password: "s3cret-pass"})
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig, result.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, claims.ShopID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, d := testService(t)
	owner := seedOwner(t, d.repo, "+919812345678", "s3cret-pass")
	ctx := context.Background()

	_, err := svc.Login(ctx, LoginInput{Phone: "+919812345678", Password: "wrong-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "wrong password")

	_, err = svc.Login(ctx, LoginInput{Phone: "+910000000000", Password: "s3cret-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "unknown phone")

	d.repo.users[owner.ID].Active = false
	_, err = svc.Login(ctx, LoginInput{Phone: "+919812345678", Password: "s3cret-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "deactivated account")
}

func TestCreateOwnerTxHashesPassword(t *testing.T) {
	svc, d := testService(t)

	user, err := svc.CreateOwnerTx(context.Background(), &gorm.DB{}, "Ramesh Gupta", "+919812345678", "s3cret-pass")
	require.NoError(t, err)

	stored := d.repo.users[user.ID]
	require.NotNil(t, stored)
	assert.NotContains(t, stored.PasswordHash, "s3cret-pass")

	ok, err := security.VerifyPassword("s3cret-pass", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateOwnerTxRejectsDuplicatePhone(t *testing.T) {
	svc, d := testService(t)
	d.repo.createErr = errors.New(`duplicate key value violates unique constraint "idx_users_phone"`)

	_, err := svc.CreateOwnerTx(context.Background(), &gorm.DB{}, "Ramesh Gupta", "+919812345678", "s3cret-pass")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateOwnerTxRequiresTransaction(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.CreateOwnerTx(context.Background(), nil, "Ramesh Gupta", "+919812345678", "s3cret-pass")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, d := testService(t)
	owner := seedOwner(t, d.repo, "+919812345678", "s3cret-pass")
	shopID := uuid.New()

	claims := &pkgauth.AccessTokenClaims{UserID: owner.ID, ShopID: &shopID}
	claims.ID = session.NewAccessID()

	result, err := svc.Refresh(context.Background(), claims, "refresh-token")
	require.NoError(t, err)

	newClaims, err := pkgauth.ParseAccessToken(testJWTConfig, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, newClaims.UserID)
	require.NotNil(t, newClaims.ShopID)
	assert.Equal(t, shopID, *newClaims.ShopID)
	assert.NotEqual(t, claims.ID, newClaims.ID, "jti rotates")
	assert.Equal(t, "refresh-"+newClaims.ID, result.RefreshToken)
}

func TestRefreshRejectsInvalidToken(t *testing.T) {
	svc, d := testService(t)
	owner := seedOwner(t, d.repo, "+919812345678", "s3cret-pass")
	d.sessions.rotateErr = session.ErrInvalidRefreshToken

	claims := &pkgauth.AccessTokenClaims{UserID: owner.ID}
	claims.ID = session.NewAccessID()

	_, err := svc.Refresh(context.Background(), claims, "stale-token")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, d := testService(t)

	require.NoError(t, svc.Logout(context.Background(), "access-id"))
	assert.Equal(t, []string{"access-id"}, d.sessions.revoked)
}
