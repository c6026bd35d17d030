package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/shops"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

// ShopProfile returns the active shop's profile using the shop-scoped JWT.
func ShopProfile(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shop, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, shop)
	}
}

type shopUpdateRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,min=2"`
	Address    *string  `json:"address,omitempty"`
	Phone      *string  `json:"phone,omitempty" validate:"omitempty,min=10"`
	Categories []string `json:"categories,omitempty"`
	Active     *bool    `json:"active,omitempty"`
}

// ShopUpdate adjusts the allowed mutable fields for the active shop.
func ShopUpdate(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shopUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shop, err := svc.Update(r.Context(), id, shops.UpdateShopInput{
			Name:       body.Name,
			Address:    body.Address,
			Phone:      body.Phone,
			Categories: body.Categories,
			Active:     body.Active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, shop)
	}
}

// ShopSettings returns the active shop's policy knobs.
func ShopSettings(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.Settings(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settings)
	}
}

type shopSettingsUpdateRequest struct {
	AllowPause         *bool            `json:"allow_pause,omitempty"`
	AllowCancel        *bool            `json:"allow_cancel,omitempty"`
	MinCreditScore     *int             `json:"min_credit_score,omitempty"`
	GracePeriodDays    *int             `json:"grace_period_days,omitempty"`
	DefaultCreditLimit *decimal.Decimal `json:"default_credit_limit,omitempty"`
	CouponsEnabled     *bool            `json:"coupons_enabled,omitempty"`
	LoyaltyEnabled     *bool            `json:"loyalty_enabled,omitempty"`
}

// ShopSettingsUpdate applies partial policy changes.
func ShopSettingsUpdate(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body shopSettingsUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.UpdateSettings(r.Context(), id, shops.UpdateSettingsInput{
			AllowPause:         body.AllowPause,
			AllowCancel:        body.AllowCancel,
			MinCreditScore:     body.MinCreditScore,
			GracePeriodDays:    body.GracePeriodDays,
			DefaultCreditLimit: body.DefaultCreditLimit,
			CouponsEnabled:     body.CouponsEnabled,
			LoyaltyEnabled:     body.LoyaltyEnabled,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settings)
	}
}

// ShopQR renders the storefront QR code as a PNG. The dashboard embeds it
// directly in an <img> tag, so this skips the JSON envelope.
func ShopQR(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		size, err := validators.ParseQueryInt(r, "size", 0, 0, 2048)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		png, url, err := svc.StorefrontQR(r.Context(), id, size)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Storefront-URL", url)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(png); err != nil && logg != nil {
			logg.Error(r.Context(), "write qr response", err)
		}
	}
}
