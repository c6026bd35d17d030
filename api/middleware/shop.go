package middleware

import (
	"net/http"

	"github.com/kiranahq/kirana-backend/api/responses"
	pkgerrors "github.com/kiranahq/kirana-backend/pkg/errors"
	"github.com/kiranahq/kirana-backend/pkg/logger"
)

// ShopContext rejects requests whose token carries no active shop.
func ShopContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ShopIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
