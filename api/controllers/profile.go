package controllers

import (
	"net/http"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/api/validators"
	"github.com/abundantshare/share-backend/internal/auth"
	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/pkg/logger"
)

type updateProfileRequest struct {
	FullName         *string `json:"full_name" validate:"omitempty,max=120"`
	OrganizationName *string `json:"organization_name" validate:"omitempty,max=200"`
	Address          *string `json:"address" validate:"omitempty,max=300"`
	City             *string `json:"city" validate:"omitempty,max=120"`
	State            *string `json:"state" validate:"omitempty,max=120"`
	PostalCode       *string `json:"postal_code" validate:"omitempty,max=20"`
}

func (req updateProfileRequest) patch() domain.ProfilePatch {
	return domain.ProfilePatch{
		FullName:         validators.SanitizeOptional(req.FullName, 120),
		OrganizationName: validators.SanitizeOptional(req.OrganizationName, 200),
		Address:          validators.SanitizeOptional(req.Address, 300),
		City:             validators.SanitizeOptional(req.City, 120),
		State:            validators.SanitizeOptional(req.State, 120),
		PostalCode:       validators.SanitizeOptional(req.PostalCode, 20),
	}
}

func GetProfile(svc auth.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "auth")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		profile, err := svc.GetProfile(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func UpdateProfile(svc auth.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "auth")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.UpdateProfile(r.Context(), identity, body.patch())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// RequestPhoneCode issues a one-time code to the caller's phone.
func RequestPhoneCode(svc auth.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "auth")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body auth.PhoneCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestPhoneCode(r.Context(), identity, body.Phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}

func VerifyPhoneCode(svc auth.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "auth")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body auth.PhoneVerifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.SubmitPhoneCode(r.Context(), identity, body.Phone, body.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
