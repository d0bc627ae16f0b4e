package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/repository"
)

const defaultElevationPrefix = "trust:elevation"

// ElevationRepository caches session elevation deadlines for low-latency trust checks.
type ElevationRepository struct {
	client *red.Client
	prefix string
}

var _ port.ElevationCache = (*ElevationRepository)(nil)

// NewElevationRepository constructs an elevation cache helper.
func NewElevationRepository(client *red.Client, keyPrefix string) *ElevationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultElevationPrefix
	}

	return &ElevationRepository{client: client, prefix: prefix}
}

// GetElevatedUntil fetches the cached elevation deadline, returning
// ErrNotFound on cache miss.
func (r *ElevationRepository) GetElevatedUntil(ctx context.Context, sessionID string) (time.Time, error) {
	key := r.key(sessionID)
	if key == "" {
		return time.Time{}, fmt.Errorf("session id is required")
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return time.Time{}, repository.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis get elevation: %w", err)
	}

	nanos, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("parse cached elevation deadline: %w", parseErr)
	}

	return time.Unix(0, nanos).UTC(), nil
}

// SetElevatedUntil stores the elevation deadline with the provided TTL.
func (r *ElevationRepository) SetElevatedUntil(ctx context.Context, sessionID string, until time.Time, ttl time.Duration) error {
	key := r.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if until.IsZero() {
		return fmt.Errorf("elevation deadline is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	if err := r.client.Set(ctx, key, strconv.FormatInt(until.UnixNano(), 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis set elevation: %w", err)
	}
	return nil
}

// DeleteElevation removes the cached elevation entry.
func (r *ElevationRepository) DeleteElevation(ctx context.Context, sessionID string) error {
	key := r.key(sessionID)
	if key == "" {
		return fmt.Errorf("session id is required")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete elevation: %w", err)
	}
	return nil
}

func (r *ElevationRepository) key(sessionID string) string {
	trimmed := strings.TrimSpace(sessionID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}
