package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/kiranahq/kirana-backend/pkg/db"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

// recentOrderWindow is the trailing window scored by the recency band.
const recentOrderWindow = 30 * 24 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerReader interface {
	FindForShop(ctx context.Context, shopID, customerID uuid.UUID) (*models.Customer, error)
}

type orderCounter interface {
	CountOrdersSince(ctx context.Context, shopID, customerID uuid.UUID, since time.Time) (int64, error)
}

type settingsProvider interface {
	PolicyForShop(ctx context.Context, shopID uuid.UUID) (models.Policy, error)
}

// Service defines the khata surface.
type Service interface {
	CreateAccount(ctx context.Context, shopID uuid.UUID, input CreateAccountInput) (*models.CreditAccount, error)
	ApplyTransaction(ctx context.Context, shopID uuid.UUID, input ApplyTransactionInput) (*models.CreditAccount, *models.CreditTransaction, error)
	ApplyTransactionTx(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, input ApplyTransactionInput) (*models.CreditAccount, *models.CreditTransaction, error)
	GetAccount(ctx context.Context, shopID, accountID uuid.UUID) (*models.CreditAccount, error)
	GetAccountByCustomer(ctx context.Context, shopID, customerID uuid.UUID) (*models.CreditAccount, error)
	ListTransactions(ctx context.Context, shopID, accountID uuid.UUID, limit int) ([]models.CreditTransaction, error)
	RefreshScore(ctx context.Context, shopID, customerID uuid.UUID) (int, error)
}

// ServiceParams groups dependencies for the credit service.
type ServiceParams struct {
	Repo              Repository
	Customers         customerReader
	Orders            orderCounter
	Settings          settingsProvider
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// CreateAccountInput captures the data required to open a khata.
type CreateAccountInput struct {
	CustomerID  uuid.UUID
	CreditLimit *decimal.Decimal
}

// ApplyTransactionInput is one ledger mutation request. Amount is a
// non-negative magnitude; direction comes from Type.
type ApplyTransactionInput struct {
	AccountID   uuid.UUID
	Type        enums.CreditTransactionType
	Amount      decimal.Decimal
	Description string
	Reference   string
}

type service struct {
	repo      Repository
	customers customerReader
	orders    orderCounter
	settings  settingsProvider
	txRunner  txRunner
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a credit service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer reader is required")
	}
	if params.Orders == nil {
		return nil, errors.New("order counter is required")
	}
	if params.Settings == nil {
		return nil, errors.New("settings provider is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &service{
		repo:      params.Repo,
		customers: params.Customers,
		orders:    params.Orders,
		settings:  params.Settings,
		txRunner:  params.TransactionRunner,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

// CreateAccount opens the khata for a (shop, customer) pair. Rejects if one
// already exists.
func (s *service) CreateAccount(ctx context.Context, shopID uuid.UUID, input CreateAccountInput) (*models.CreditAccount, error) {
	if shopID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and customer id are required")
	}

	policy, err := s.settings.PolicyForShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.FindForShop(ctx, shopID, input.CustomerID)
	if err != nil {
		return nil, asNotFound(err, "customer not found")
	}

	limit := policy.DefaultCreditLimit
	if input.CreditLimit != nil {
		limit = *input.CreditLimit
	}
	if limit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit limit must not be negative")
	}

	score, err := s.scoreFor(ctx, shopID, customer, policy)
	if err != nil {
		return nil, err
	}

	now := s.now()
	due := now.Add(time.Duration(policy.GracePeriodDays) * 24 * time.Hour)
	account := &models.CreditAccount{
		ID:              uuid.New(),
		ShopID:          shopID,
		CustomerID:      customer.ID,
		CreditLimit:     limit,
		CurrentBalance:  decimal.Zero,
		AvailableCredit: limit,
		CreditScore:     score,
		Active:          true,
		DueDate:         &due,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateAccount(ctx, account); err != nil {
			if dbpkg.IsUniqueViolation(err, "idx_credit_accounts_pair") {
				return pkgerrors.New(pkgerrors.CodeConflict, "credit account already exists for this customer")
			}
			return err
		}
		// opening entry for audit symmetry; the balance itself stays zero
		return repo.InsertTransaction(ctx, &models.CreditTransaction{
			ID:           uuid.New(),
			AccountID:    account.ID,
			Type:         enums.CreditTransactionTypeCredit,
			Amount:       limit,
			BalanceAfter: decimal.Zero,
			Description:  "credit account opened",
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ApplyTransaction mutates the account balance under a row lock and appends
// the immutable ledger entry. A mutation that would push the balance past
// the credit limit is rejected with no state change.
func (s *service) ApplyTransaction(ctx context.Context, shopID uuid.UUID, input ApplyTransactionInput) (*models.CreditAccount, *models.CreditTransaction, error) {
	var (
		account *models.CreditAccount
		entry   *models.CreditTransaction
	)

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		account, entry, err = s.ApplyTransactionTx(ctx, tx, shopID, input)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return account, entry, nil
}

// ApplyTransactionTx is ApplyTransaction running inside the caller's
// transaction, so an order or payment and its ledger entry commit together.
func (s *service) ApplyTransactionTx(ctx context.Context, tx *gorm.DB, shopID uuid.UUID, input ApplyTransactionInput) (*models.CreditAccount, *models.CreditTransaction, error) {
	if tx == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger mutation requires a transaction")
	}
	if shopID == uuid.Nil || input.AccountID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id and account id are required")
	}
	if !input.Type.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Amount.IsNegative() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}

	repo := s.repo.WithTx(tx)

	locked, err := repo.FindAccountByIDForUpdate(ctx, shopID, input.AccountID)
	if err != nil {
		return nil, nil, asNotFound(err, "credit account not found")
	}
	if !locked.Active {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "credit account is inactive")
	}

	newBalance, newAvailable := applyDelta(locked, input.Type, input.Amount)
	if newBalance.GreaterThan(locked.CreditLimit) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeLimitExceeded,
			fmt.Sprintf("transaction would exceed credit limit of %s", locked.CreditLimit))
	}
	// upper-bound clamp only; negative available credit is preserved
	if newAvailable.GreaterThan(locked.CreditLimit) {
		newAvailable = locked.CreditLimit
	}

	locked.CurrentBalance = newBalance
	locked.AvailableCredit = newAvailable

	if input.Type == enums.CreditTransactionTypePayment {
		paidAt := s.now()
		locked.LastPaymentDate = &paidAt
		s.refreshScoreBestEffort(ctx, locked)
	}

	if err := repo.UpdateAccount(ctx, locked); err != nil {
		return nil, nil, err
	}

	row := &models.CreditTransaction{
		ID:           uuid.New(),
		AccountID:    locked.ID,
		Type:         input.Type,
		Amount:       input.Amount,
		BalanceAfter: newBalance,
		Description:  input.Description,
		Reference:    input.Reference,
	}
	if err := repo.InsertTransaction(ctx, row); err != nil {
		return nil, nil, err
	}
	return locked, row, nil
}

func (s *service) GetAccount(ctx context.Context, shopID, accountID uuid.UUID) (*models.CreditAccount, error) {
	account, err := s.repo.FindAccountByID(ctx, shopID, accountID)
	if err != nil {
		return nil, asNotFound(err, "credit account not found")
	}
	return account, nil
}

func (s *service) GetAccountByCustomer(ctx context.Context, shopID, customerID uuid.UUID) (*models.CreditAccount, error) {
	account, err := s.repo.FindAccountByCustomer(ctx, shopID, customerID)
	if err != nil {
		return nil, asNotFound(err, "credit account not found")
	}
	return account, nil
}

func (s *service) ListTransactions(ctx context.Context, shopID, accountID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	if _, err := s.repo.FindAccountByID(ctx, shopID, accountID); err != nil {
		return nil, asNotFound(err, "credit account not found")
	}
	return s.repo.ListTransactions(ctx, accountID, limit)
}

// RefreshScore recomputes the heuristic score from current purchase stats.
func (s *service) RefreshScore(ctx context.Context, shopID, customerID uuid.UUID) (int, error) {
	account, err := s.repo.FindAccountByCustomer(ctx, shopID, customerID)
	if err != nil {
		return 0, asNotFound(err, "credit account not found")
	}

	policy, err := s.settings.PolicyForShop(ctx, shopID)
	if err != nil {
		return 0, err
	}

	customer, err := s.customers.FindForShop(ctx, shopID, customerID)
	if err != nil {
		return 0, asNotFound(err, "customer not found")
	}

	score, err := s.scoreFor(ctx, shopID, customer, policy)
	if err != nil {
		return 0, err
	}

	account.CreditScore = score
	if err := s.repo.UpdateAccount(ctx, account); err != nil {
		return 0, err
	}
	return score, nil
}

func (s *service) scoreFor(ctx context.Context, shopID uuid.UUID, customer *models.Customer, policy models.Policy) (int, error) {
	recent, err := s.orders.CountOrdersSince(ctx, shopID, customer.ID, s.now().Add(-recentOrderWindow))
	if err != nil {
		return 0, err
	}
	return ComputeCreditScore(ScoreInputs{
		TotalOrders:  customer.TotalOrders,
		TotalSpent:   customer.TotalSpent,
		RecentOrders: int(recent),
	}, policy.MinCreditScore), nil
}

// refreshScoreBestEffort recomputes the score during a payment; stats lookups
// failing must not abort the payment itself.
func (s *service) refreshScoreBestEffort(ctx context.Context, account *models.CreditAccount) {
	policy, err := s.settings.PolicyForShop(ctx, account.ShopID)
	if err != nil {
		s.logWarn(ctx, account, err)
		return
	}
	customer, err := s.customers.FindForShop(ctx, account.ShopID, account.CustomerID)
	if err != nil {
		s.logWarn(ctx, account, err)
		return
	}
	score, err := s.scoreFor(ctx, account.ShopID, customer, policy)
	if err != nil {
		s.logWarn(ctx, account, err)
		return
	}
	account.CreditScore = score
}

func (s *service) logWarn(ctx context.Context, account *models.CreditAccount, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"account_id": account.ID.String()})
	s.logg.Warn(logCtx, fmt.Sprintf("credit score refresh skipped: %v", err))
}

// applyDelta computes the post-transaction balance and available credit.
func applyDelta(account *models.CreditAccount, txType enums.CreditTransactionType, amount decimal.Decimal) (balance, available decimal.Decimal) {
	balance = account.CurrentBalance
	available = account.AvailableCredit

	switch txType {
	case enums.CreditTransactionTypeCredit:
		balance = balance.Add(amount)
		available = available.Add(amount)
	case enums.CreditTransactionTypeDebit:
		balance = balance.Sub(amount)
		available = available.Sub(amount)
	case enums.CreditTransactionTypePayment:
		balance = balance.Sub(amount)
		available = available.Add(amount)
	case enums.CreditTransactionTypeAdjustment:
		balance = amount
		available = amount
	case enums.CreditTransactionTypeInterest:
		balance = balance.Add(amount)
	case enums.CreditTransactionTypeFee:
		balance = balance.Sub(amount)
	}
	return balance, available
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
