package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/wmremover/internal/config"
	"github.com/yokitheyo/wmremover/internal/domain"
)

const maxTxRetries = 50

// RedisStore keeps each snapshot as one JSON value. Mutations run in
// WATCH/MULTI transactions and are retried when another writer wins.
// Running sessions never expire; ttl starts once a session is terminal.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects and pings the server, retrying while redis is
// still starting up.
func NewRedisClient(ctx context.Context, cfg config.ProgressConfig) (*redis.Client, error) {
	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = 1
	}
	delay := time.Duration(cfg.ConnectRetryDelaySec) * time.Second
	if delay <= 0 {
		delay = time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	var err error
	for i := 0; i < retries; i++ {
		zlog.Logger.Info().Msgf("Redis connection attempt %d/%d", i+1, retries)

		if err = rdb.Ping(ctx).Err(); err == nil {
			zlog.Logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis connection established successfully")
			return rdb, nil
		}
		zlog.Logger.Warn().Err(err).Msgf("redis ping failed on attempt %d/%d", i+1, retries)

		if i < retries-1 {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("ping redis %s after %d attempts: %w", cfg.RedisAddr, retries, err)
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "wmremover:progress:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Create(ctx context.Context, sessionID string, total int) error {
	data, err := json.Marshal(domain.NewProgressSnapshot(total))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(sessionID), data, 0).Result()
	if err != nil {
		zlog.Logger.Error().Err(err).Str("session_id", sessionID).Msg("redis create session failed")
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return domain.ErrSessionExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*domain.ProgressSnapshot, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) SetCurrent(ctx context.Context, sessionID, filename string) error {
	_, err := s.update(ctx, sessionID, func(snap *domain.ProgressSnapshot) {
		snap.Current = filename
	})
	return err
}

func (s *RedisStore) AppendResult(ctx context.Context, sessionID string, result domain.ProcessingResult) (*domain.ProgressSnapshot, error) {
	return s.update(ctx, sessionID, func(snap *domain.ProgressSnapshot) {
		snap.Append(result)
	})
}

func (s *RedisStore) SetStatus(ctx context.Context, sessionID string, status domain.BatchStatus) error {
	_, err := s.update(ctx, sessionID, func(snap *domain.ProgressSnapshot) {
		snap.Status = status
	})
	return err
}

func (s *RedisStore) update(ctx context.Context, sessionID string, fn func(*domain.ProgressSnapshot)) (*domain.ProgressSnapshot, error) {
	key := s.key(sessionID)
	var out *domain.ProgressSnapshot

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		snap, err := decode(data)
		if err != nil {
			return err
		}
		fn(snap)
		next, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			var expiration time.Duration = redis.KeepTTL
			if s.ttl > 0 && snap.IsTerminal() {
				expiration = s.ttl
			}
			pipe.Set(ctx, key, next, expiration)
			return nil
		})
		if err == nil {
			out = snap
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				zlog.Logger.Error().Err(err).Str("session_id", sessionID).Msg("redis update session failed")
			}
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update session %s: too much contention", sessionID)
}

func decode(data []byte) (*domain.ProgressSnapshot, error) {
	var snap domain.ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Results == nil {
		snap.Results = []domain.ProcessingResult{}
	}
	return &snap, nil
}
