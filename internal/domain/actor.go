package domain

import "github.com/abundantshare/share-backend/pkg/enums"

// Actor is the authenticated caller of a data-access operation.
type Actor struct {
	UserID string
	Role   enums.ProfileRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.ProfileRoleAdmin
}

// Owns reports whether the actor is the given user or an admin.
func (a Actor) Owns(userID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == userID)
}
