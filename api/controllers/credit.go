package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/credit"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type creditAccountCreateRequest struct {
	CustomerID  uuid.UUID        `json:"customer_id" validate:"required"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty"`
}

// CreditAccountCreate opens a khata for a customer. The shop default limit
// applies when none is supplied.
func CreditAccountCreate(svc credit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body creditAccountCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.CreateAccount(r.Context(), id, credit.CreateAccountInput{
			CustomerID:  body.CustomerID,
			CreditLimit: body.CreditLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

func CreditAccountGet(svc credit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := pathUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.GetAccount(r.Context(), id, accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, account)
	}
}

// CreditAccountByCustomer resolves the khata through the customer id, which
// is how the dashboard navigates to it.
func CreditAccountByCustomer(svc credit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := pathUUID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.GetAccountByCustomer(r.Context(), id, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, account)
	}
}

type creditTransactionRequest struct {
	AccountID   uuid.UUID       `json:"account_id" validate:"required"`
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
}

type creditTransactionResponse struct {
	Account     any `json:"account"`
	Transaction any `json:"transaction"`
}

// CreditApplyTransaction posts a manual ledger entry (payment collected at
// the counter, an adjustment, a fee).
func CreditApplyTransaction(svc credit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body creditTransactionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entryType, err := enums.ParseCreditTransactionType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
			return
		}

		account, txn, err := svc.ApplyTransaction(r.Context(), id, credit.ApplyTransactionInput{
			AccountID:   body.AccountID,
			Type:        entryType,
			Amount:      body.Amount,
			Description: validators.SanitizeString(body.Description, 500),
			Reference:   validators.SanitizeString(body.Reference, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, creditTransactionResponse{Account: account, Transaction: txn})
	}
}

func CreditTransactions(svc credit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := pathUUID(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListTransactions(r.Context(), id, accountID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// CreditRefreshScore recomputes a customer's repayment score on demand.
func CreditRefreshScore(svc credit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "credit service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := pathUUID(r, "customerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		score, err := svc.RefreshScore(r.Context(), id, customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int{"credit_score": score})
	}
}
