package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/subscriptions"
	"github.com/kiranahq/kirana-backend/pkg/enums"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type subscriptionCreateRequest struct {
	CustomerID   uuid.UUID  `json:"customer_id" validate:"required"`
	ProductID    uuid.UUID  `json:"product_id" validate:"required"`
	Quantity     int        `json:"quantity" validate:"required,min=1"`
	Frequency    string     `json:"frequency" validate:"required"`
	DeliveryTime string     `json:"delivery_time" validate:"required"`
	CustomDays   []string   `json:"custom_days"`
	AutoCharge   bool       `json:"auto_charge"`
	StartDate    *time.Time `json:"start_date"`
}

func SubscriptionCreate(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body subscriptionCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		frequency, err := enums.ParseSubscriptionFrequency(body.Frequency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frequency"))
			return
		}

		subscription, err := svc.Create(r.Context(), id, subscriptions.CreateSubscriptionInput{
			CustomerID:   body.CustomerID,
			ProductID:    body.ProductID,
			Quantity:     body.Quantity,
			Frequency:    frequency,
			DeliveryTime: strings.TrimSpace(body.DeliveryTime),
			CustomDays:   body.CustomDays,
			AutoCharge:   body.AutoCharge,
			StartDate:    body.StartDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, subscription)
	}
}

func SubscriptionList(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var customerID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("customer_id")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
				return
			}
			customerID = &parsed
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), id, customerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

func SubscriptionGet(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := pathUUID(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscription, err := svc.Get(r.Context(), id, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, subscription)
	}
}

// subscriptionLifecycle covers pause/resume/cancel, which share a shape.
func subscriptionLifecycle(svc subscriptions.Service, logg *logger.Logger, action func(svc subscriptions.Service, r *http.Request, shop, id uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := pathUUID(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := action(svc, r, id, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func SubscriptionPause(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionLifecycle(svc, logg, func(svc subscriptions.Service, r *http.Request, shop, id uuid.UUID) (any, error) {
		return svc.Pause(r.Context(), shop, id)
	})
}

func SubscriptionResume(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionLifecycle(svc, logg, func(svc subscriptions.Service, r *http.Request, shop, id uuid.UUID) (any, error) {
		return svc.Resume(r.Context(), shop, id)
	})
}

func SubscriptionCancel(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return subscriptionLifecycle(svc, logg, func(svc subscriptions.Service, r *http.Request, shop, id uuid.UUID) (any, error) {
		return svc.Cancel(r.Context(), shop, id)
	})
}

func SubscriptionDeliveries(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := pathUUID(r, "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveries, err := svc.ListDeliveries(r.Context(), id, subscriptionID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, deliveries)
	}
}

type deliveryCompleteRequest struct {
	ActualQuantity *int             `json:"actual_quantity,omitempty" validate:"omitempty,min=0"`
	ActualPrice    *decimal.Decimal `json:"actual_price,omitempty"`
	DeliveredBy    *uuid.UUID       `json:"delivered_by,omitempty"`
}

func DeliveryComplete(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		id, err := shopID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deliveryID, err := pathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body deliveryCompleteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.CompleteDelivery(r.Context(), id, deliveryID, subscriptions.CompleteDeliveryInput{
			ActualQuantity: body.ActualQuantity,
			ActualPrice:    body.ActualPrice,
			DeliveredBy:    body.DeliveredBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, delivery)
	}
}
