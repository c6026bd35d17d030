package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/auth"
	"github.com/kiranahq/kirana-backend/internal/shops"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

type registerRequest struct {
	OwnerName  string   `json:"owner_name" validate:"required,min=2"`
	Phone      string   `json:"phone" validate:"required,min=10"`
	Password   string   `json:"password" validate:"required,min=8"`
	ShopName   string   `json:"shop_name" validate:"required,min=2"`
	Address    string   `json:"address"`
	Categories []string `json:"categories"`
}

type userView struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
}

func newUserView(u *models.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{ID: u.ID, Name: u.Name, Phone: u.Phone}
}

type registerResponse struct {
	Owner *userView    `json:"owner"`
	Shop  *models.Shop `json:"shop"`
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *userView     `json:"user"`
	Shops        []models.Shop `json:"shops"`
}

// AuthRegister creates the owner account plus the first shop in one shot.
func AuthRegister(svc shops.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Register(r.Context(), shops.RegisterShopInput{
			OwnerName:  validators.SanitizeString(body.OwnerName, 120),
			Phone:      validators.SanitizeString(body.Phone, 20),
			Password:   body.Password,
			ShopName:   validators.SanitizeString(body.ShopName, 120),
			Address:    validators.SanitizeString(body.Address, 500),
			Categories: body.Categories,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, registerResponse{
			Owner: newUserView(result.Owner),
			Shop:  result.Shop,
		})
	}
}

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), auth.LoginInput{
			Phone:    body.Phone,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			User:         newUserView(result.User),
			Shops:        result.Shops,
		})
	}
}
