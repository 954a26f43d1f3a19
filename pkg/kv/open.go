package kv

import (
	"fmt"
	"strings"

	"github.com/abundantshare/share-backend/pkg/config"
	redisclient "github.com/abundantshare/share-backend/pkg/redis"
)

// Open builds the medium selected by configuration. The redis client may be
// nil unless the redis medium is selected.
func Open(cfg config.LocalStoreConfig, redis *redisclient.Client) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Medium)) {
	case config.LocalMediumMemory:
		return NewMemory(), nil
	case config.LocalMediumFile, "":
		return NewFile(cfg.Path)
	case config.LocalMediumRedis:
		return NewRedis(redis, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported local store medium %q", cfg.Medium)
	}
}
