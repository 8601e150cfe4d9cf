// Package progress stores per-session batch progress.
package progress

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

// New builds the configured store. The returned close func releases any
// connection the store owns.
func New(ctx context.Context, cfg config.ProgressConfig) (domain.ProgressStore, func() error, error) {
	switch cfg.Type {
	case "", "memory":
		zlog.Logger.Info().Dur("ttl", cfg.TTL()).Msg("Initializing in-memory progress store")
		return NewMemoryStore(cfg.TTL()), func() error { return nil }, nil
	case "redis":
		zlog.Logger.Info().Str("addr", cfg.RedisAddr).Msg("Initializing redis progress store")
		rdb, err := NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb, cfg.KeyPrefix, cfg.TTL()), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported progress store type: %s", cfg.Type)
	}
}
