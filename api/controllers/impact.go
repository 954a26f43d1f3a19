package controllers

import (
	"net/http"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/internal/impact"
	"github.com/abundantshare/share-backend/pkg/logger"
)

func GetImpact(svc impact.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "impact")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		stats, err := svc.Get(r.Context(), identity.Actor())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
