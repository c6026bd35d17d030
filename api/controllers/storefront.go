package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kiranahq/kirana-backend/api/responses"
	"github.com/kiranahq/kirana-backend/api/validators"
	"github.com/kiranahq/kirana-backend/internal/products"
	"github.com/kiranahq/kirana-backend/internal/shops"
	"github.com/kiranahq/kirana-backend/pkg/db/models"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
	"github.com/kiranahq/kirana-backend/pkg/pagination"
)

// storefrontShopView is the public shape of a shop. Owner details never
// leave the tenant boundary.
type storefrontShopView struct {
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Address    string   `json:"address"`
	Phone      string   `json:"phone"`
	Categories []string `json:"categories"`
}

type storefrontResponse struct {
	Shop       storefrontShopView `json:"shop"`
	Products   []models.Product   `json:"products"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// Storefront is the public page behind the printed QR code: shop profile
// plus its active catalog, keyed by slug.
func Storefront(shopSvc shops.Service, productSvc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if shopSvc == nil || productSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "storefront unavailable"))
			return
		}

		slug := strings.TrimSpace(chi.URLParam(r, "slug"))
		if slug == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "slug is required"))
			return
		}

		shop, err := shopSvc.GetBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := productSvc.List(r.Context(), shop.ID, products.ListQuery{
			ActiveOnly: true,
			Category:   validators.SanitizeString(r.URL.Query().Get("category"), 60),
			Search:     validators.SanitizeString(r.URL.Query().Get("q"), 120),
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, storefrontResponse{
			Shop: storefrontShopView{
				Name:       shop.Name,
				Slug:       shop.Slug,
				Address:    shop.Address,
				Phone:      shop.Phone,
				Categories: shop.Categories,
			},
			Products:   page.Products,
			NextCursor: page.NextCursor,
		})
	}
}
