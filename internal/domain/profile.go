package domain

import (
	"time"

	"github.com/abundantshare/share-backend/pkg/enums"
)

// Profile is the one-per-user public record.
type Profile struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	FullName         string            `json:"full_name"`
	Role             enums.ProfileRole `json:"role"`
	OrganizationName string            `json:"organization_name,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	PhoneVerified    bool              `json:"phone_verified"`
	Address          string            `json:"address,omitempty"`
	City             string            `json:"city,omitempty"`
	State            string            `json:"state,omitempty"`
	PostalCode       string            `json:"postal_code,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == enums.ProfileRoleAdmin
}

// ProfilePatch is the self-service profile update. Phone and the verified
// flag are only changed through the phone verification flow.
type ProfilePatch struct {
	FullName         *string `json:"full_name,omitempty"`
	OrganizationName *string `json:"organization_name,omitempty"`
	Address          *string `json:"address,omitempty"`
	City             *string `json:"city,omitempty"`
	State            *string `json:"state,omitempty"`
	PostalCode       *string `json:"postal_code,omitempty"`
}

func (p ProfilePatch) Apply(profile Profile) Profile {
	if p.FullName != nil {
		profile.FullName = *p.FullName
	}
	if p.OrganizationName != nil {
		profile.OrganizationName = *p.OrganizationName
	}
	if p.Address != nil {
		profile.Address = *p.Address
	}
	if p.City != nil {
		profile.City = *p.City
	}
	if p.State != nil {
		profile.State = *p.State
	}
	if p.PostalCode != nil {
		profile.PostalCode = *p.PostalCode
	}
	return profile
}

func (p ProfilePatch) IsEmpty() bool {
	return p.FullName == nil && p.OrganizationName == nil && p.Address == nil &&
		p.City == nil && p.State == nil && p.PostalCode == nil
}
