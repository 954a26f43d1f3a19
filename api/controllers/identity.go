package controllers

import (
	"net/http"

	"github.com/abundantshare/share-backend/api/middleware"
	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/internal/auth"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

// StoreModeHeader reports which store served a listing or claim response.
const StoreModeHeader = "X-Share-Store-Mode"

func requireIdentity(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return auth.Identity{}, false
	}
	return id, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}
