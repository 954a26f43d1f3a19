// Package kv provides the get/set/remove key-value capability that backs the
// Local Device Store, with in-memory, JSON-file and Redis media.
package kv

import (
	"context"
	"errors"
)

// ErrUnavailable marks a medium that cannot be reached at all.
var ErrUnavailable = errors.New("kv medium unavailable")

// Store is the storage capability injected into the Local Device Store.
// Get reports ok=false for keys that were never set.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Unavailable is a Store whose every call fails, standing in for an absent or
// denied medium.
type Unavailable struct {
	Err error
}

func (u Unavailable) err() error {
	if u.Err != nil {
		return u.Err
	}
	return ErrUnavailable
}

func (u Unavailable) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, u.err()
}

func (u Unavailable) Set(context.Context, string, []byte) error {
	return u.err()
}

func (u Unavailable) Remove(context.Context, string) error {
	return u.err()
}
