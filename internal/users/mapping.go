package users

import (
	"github.com/abundantshare/share-backend/internal/domain"
	"github.com/abundantshare/share-backend/pkg/db/models"
)

// ToDomainProfile maps a hosted profile row onto the entity model.
func ToDomainProfile(m models.Profile) domain.Profile {
	return domain.Profile{
		ID:               m.ID.String(),
		UserID:           m.UserID.String(),
		FullName:         m.FullName,
		Role:             m.Role,
		OrganizationName: deref(m.OrganizationName),
		Phone:            deref(m.Phone),
		PhoneVerified:    m.PhoneVerified,
		Address:          deref(m.Address),
		City:             deref(m.City),
		State:            deref(m.State),
		PostalCode:       deref(m.PostalCode),
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

// ApplyProfile copies the editable fields of p onto the row.
func ApplyProfile(m *models.Profile, p domain.Profile) {
	m.FullName = p.FullName
	m.Role = p.Role
	m.OrganizationName = ref(p.OrganizationName)
	m.Phone = ref(p.Phone)
	m.PhoneVerified = p.PhoneVerified
	m.Address = ref(p.Address)
	m.City = ref(p.City)
	m.State = ref(p.State)
	m.PostalCode = ref(p.PostalCode)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
