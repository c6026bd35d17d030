package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/coupons"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type couponCreateRequest struct {
	Code           string           `json:"code" validate:"required,min=3,max=40"`
	Type           string           `json:"type" validate:"required"`
	Value          decimal.Decimal  `json:"value" validate:"required"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	UsageLimit     int              `json:"usage_limit" validate:"min=0"`
	PerCustomerCap int              `json:"per_customer_cap" validate:"min=0"`
	ValidFrom      time.Time        `json:"valid_from" validate:"required"`
	ValidUntil     time.Time        `json:"valid_until" validate:"required"`
}

func CouponCreate(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body couponCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		couponType, err := enums.ParseCouponType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid coupon type"))
			return
		}

		coupon, err := svc.Create(r.Context(), id, coupons.CreateCouponInput{
			Code:           validators.SanitizeString(body.Code, 40),
			Type:           couponType,
			Value:          body.Value,
			MinOrderAmount: body.MinOrderAmount,
			MaxDiscount:    body.MaxDiscount,
			UsageLimit:     body.UsageLimit,
			PerCustomerCap: body.PerCustomerCap,
			ValidFrom:      body.ValidFrom,
			ValidUntil:     body.ValidUntil,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, coupon)
	}
}

func CouponList(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), id, activeOnly, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func CouponGet(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		couponID, err := pathUUID(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Get(r.Context(), id, couponID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}

func CouponDeactivate(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		couponID, err := pathUUID(r, "couponId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.Deactivate(r.Context(), id, couponID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, coupon)
	}
}

type couponValidateRequest struct {
	Code        string          `json:"code" validate:"required"`
	CustomerID  uuid.UUID       `json:"customer_id" validate:"required"`
	OrderAmount decimal.Decimal `json:"order_amount" validate:"required"`
}

type couponQuoteResponse struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// CouponValidate previews a discount without consuming the coupon.
func CouponValidate(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body couponValidateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Validate(r.Context(), id, validators.SanitizeString(body.Code, 40), body.CustomerID, body.OrderAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, couponQuoteResponse{
			Code:     quote.Coupon.Code,
			Discount: quote.Discount,
		})
	}
}
