package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abundantshare/share-backend/api/responses"
	"github.com/abundantshare/share-backend/api/validators"
	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/internal/listings"
	"github.com/abundantshare/share-backend/pkg/enums"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
	maxLocationLen    = 500
)

type createListingRequest struct {
	Title           string             `json:"title" validate:"required,max=200"`
	Description     string             `json:"description" validate:"max=2000"`
	Quantity        string             `json:"quantity" validate:"required,max=100"`
	Category        enums.FoodCategory `json:"category" validate:"omitempty,food_category"`
	ExpiryDate      time.Time          `json:"expiry_date"`
	PickupTimeStart time.Time          `json:"pickup_time_start"`
	PickupTimeEnd   time.Time          `json:"pickup_time_end"`
	PickupLocation  string             `json:"pickup_location" validate:"required,max=500"`
	Images          []string           `json:"images" validate:"max=10,dive,required,https_url"`
}

func (req createListingRequest) listing() (domain.FoodListing, error) {
	if req.ExpiryDate.IsZero() {
		return domain.FoodListing{}, pkgerrors.New(pkgerrors.CodeValidation, "expiry_date is required")
	}
	if err := checkPickupWindow(req.PickupTimeStart, req.PickupTimeEnd); err != nil {
		return domain.FoodListing{}, err
	}
	return domain.FoodListing{
		Title:           validators.SanitizeString(req.Title, maxTitleLen),
		Description:     validators.SanitizeString(req.Description, maxDescriptionLen),
		Quantity:        strings.TrimSpace(req.Quantity),
		Category:        req.Category,
		ExpiryDate:      req.ExpiryDate.UTC(),
		PickupTimeStart: req.PickupTimeStart.UTC(),
		PickupTimeEnd:   req.PickupTimeEnd.UTC(),
		PickupLocation:  validators.SanitizeString(req.PickupLocation, maxLocationLen),
		Images:          req.Images,
	}, nil
}

type updateListingRequest struct {
	Title           *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string              `json:"description" validate:"omitempty,max=2000"`
	Quantity        *string              `json:"quantity" validate:"omitempty,min=1,max=100"`
	Category        *enums.FoodCategory  `json:"category" validate:"omitempty,food_category"`
	ExpiryDate      *time.Time           `json:"expiry_date"`
	PickupTimeStart *time.Time           `json:"pickup_time_start"`
	PickupTimeEnd   *time.Time           `json:"pickup_time_end"`
	PickupLocation  *string              `json:"pickup_location" validate:"omitempty,min=1,max=500"`
	Status          *enums.ListingStatus `json:"status" validate:"omitempty,listing_status"`
	Images          *[]string            `json:"images" validate:"omitempty,max=10,dive,required,https_url"`
}

func (req updateListingRequest) patch() (domain.ListingPatch, error) {
	if req.PickupTimeStart != nil && req.PickupTimeEnd != nil {
		if err := checkPickupWindow(*req.PickupTimeStart, *req.PickupTimeEnd); err != nil {
			return domain.ListingPatch{}, err
		}
	}
	return domain.ListingPatch{
		Title:           validators.SanitizeOptional(req.Title, maxTitleLen),
		Description:     validators.SanitizeOptional(req.Description, maxDescriptionLen),
		Quantity:        validators.SanitizeOptional(req.Quantity, 100),
		Category:        req.Category,
		ExpiryDate:      utcPtr(req.ExpiryDate),
		PickupTimeStart: utcPtr(req.PickupTimeStart),
		PickupTimeEnd:   utcPtr(req.PickupTimeEnd),
		PickupLocation:  validators.SanitizeOptional(req.PickupLocation, maxLocationLen),
		Status:          req.Status,
		Images:          req.Images,
	}, nil
}

func checkPickupWindow(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "pickup_time_end must not precede pickup_time_start")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// ListAvailableListings is the public browse feed.
func ListAvailableListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, filtered, err := validators.ParseQueryEnum(r, "category", enums.ParseFoodCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListAvailable(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filtered {
			kept := make([]domain.FoodListing, 0, len(items))
			for _, item := range items {
				if item.Category == category {
					kept = append(kept, item)
				}
			}
			items = kept
		}
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		w.Header().Set(StoreModeHeader, string(svc.Mode()))
		responses.WriteSuccess(w, items)
	}
}

func ListMyListings(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		items, err := svc.ListDonorListings(r.Context(), identity.Actor())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(StoreModeHeader, string(svc.Mode()))
		responses.WriteSuccess(w, items)
	}
}

func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}

		listing, err := svc.GetListing(r.Context(), chi.URLParam(r, "listingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func CreateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body createListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.listing()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.CreateListing(r.Context(), identity.Actor(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set(StoreModeHeader, storeModeOf(listing.ID))
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func UpdateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		var body updateListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		patch, err := body.patch()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.UpdateListing(r.Context(), identity.Actor(), chi.URLParam(r, "listingId"), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func DeleteListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		if err := svc.DeleteListing(r.Context(), identity.Actor(), chi.URLParam(r, "listingId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// CompleteListing marks a claimed listing as handed over.
func CompleteListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "listings")
			return
		}
		identity, ok := requireIdentity(w, r, logg)
		if !ok {
			return
		}

		listing, err := svc.CompleteListing(r.Context(), identity.Actor(), chi.URLParam(r, "listingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func storeModeOf(id string) string {
	if domain.IsLocalID(id) {
		return string(listings.ModeLocal)
	}
	return string(listings.ModeHosted)
}
