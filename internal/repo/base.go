// Package repo holds the gorm plumbing shared by the hosted repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by every hosted repository (listings, users, impact, otp).
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx yields the raw connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Tx runs fn in one transaction bound to ctx; fn's error rolls it back.
func (b Base) Tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return b.DB(ctx).Transaction(fn)
}
