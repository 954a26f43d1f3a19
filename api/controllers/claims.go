package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/api/validators"
	"github.com/abundantshare/share-backend/internal/listings"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

type createClaimRequest struct {
	ListingID string `json:"listing_id" validate:"required"`
	Quantity  int    `json:"quantity_requested" validate:"omitempty,min=1,max=1000"`
}

type claimStatusRequest struct {
	Status enums.ClaimStatus `json:"status" validate:"required,claim_status"`
}

func CreateClaim(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body createClaimRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claim, err := svc.CreateClaim(r.Context(), identity.Actor(), body.ListingID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(StoreModeHeader, storeModeOf(claim.ID))
		responses.WriteSuccessStatus(w, http.StatusCreated, claim)
	}
}

// ListMyClaims returns the caller's claims as a recipient.
func ListMyClaims(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		items, err := svc.ListClaimsByUser(r.Context(), identity.Actor())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(StoreModeHeader, string(svc.Mode()))
		responses.WriteSuccess(w, items)
	}
}

// ListIncomingClaims returns claims against the caller's own listings.
func ListIncomingClaims(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		items, err := svc.ListClaimsForDonor(r.Context(), identity.Actor())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(StoreModeHeader, string(svc.Mode()))
		responses.WriteSuccess(w, items)
	}
}

func GetClaim(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		claim, err := svc.GetClaim(r.Context(), identity.Actor(), chi.URLParam(r, "claimId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, claim)
	}
}

// UpdateClaimStatus lets a party to the claim settle it.
func UpdateClaimStatus(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body claimStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseClaimStatus(string(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid claim status"))
			return
		}

		claim, err := svc.SetClaimStatus(r.Context(), identity.Actor(), chi.URLParam(r, "claimId"), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, claim)
	}
}
