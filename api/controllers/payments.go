package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/payments"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type paymentRecordRequest struct {
	CustomerID   uuid.UUID       `json:"customer_id" validate:"required"`
	InvoiceID    *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Mode         string          `json:"mode" validate:"required"`
	Reference    string          `json:"reference"`
	ApplyToKhata bool            `json:"apply_to_khata"`
}

// PaymentRecord captures an offline settlement: cash at the counter or a
// UPI transfer the owner confirmed on their phone.
func PaymentRecord(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body paymentRecordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		mode, err := enums.ParsePaymentMode(body.Mode)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment mode"))
			return
		}

		payment, err := svc.Record(r.Context(), id, payments.RecordPaymentInput{
			CustomerID:   body.CustomerID,
			InvoiceID:    body.InvoiceID,
			Amount:       body.Amount,
			Mode:         mode,
			Reference:    validators.SanitizeString(body.Reference, 120),
			ApplyToKhata: body.ApplyToKhata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		paymentID, err := pathUUID(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Get(r.Context(), id, paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payment)
	}
}

func PaymentListByCustomer(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
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

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByCustomer(r.Context(), id, customerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

type gatewayOrderRequest struct {
	InvoiceID uuid.UUID        `json:"invoice_id" validate:"required"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

type gatewayOrderResponse struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// PaymentGatewayOrder opens a Razorpay order for an outstanding invoice and
// hands back what the checkout widget needs.
func PaymentGatewayOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body gatewayOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateGatewayOrder(r.Context(), id, payments.CreateGatewayOrderInput{
			InvoiceID: body.InvoiceID,
			Amount:    body.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, gatewayOrderResponse{
			PaymentID:      result.Payment.ID,
			GatewayOrderID: result.Order.ID,
			Amount:         result.Payment.Amount,
			Currency:       result.Order.Currency,
		})
	}
}

type gatewayConfirmRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// PaymentGatewayConfirm verifies the signed checkout callback and settles
// the pending payment.
func PaymentGatewayConfirm(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body gatewayConfirmRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.ConfirmGatewayPayment(r.Context(), id, payments.ConfirmGatewayPaymentInput{
			GatewayOrderID:   body.GatewayOrderID,
			GatewayPaymentID: body.GatewayPaymentID,
			Signature:        body.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payment)
	}
}
