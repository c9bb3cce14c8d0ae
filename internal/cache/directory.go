package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/redis/go-redis/v9"
)

// Directory is a read-through cache over an identity.Directory. Users are
// never edited, so entries only expire.
type Directory struct {
	next   identity.Directory
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewDirectory returns next unchanged when rdb is nil.
func NewDirectory(next identity.Directory, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) identity.Directory {
	if rdb == nil {
		return next
	}
	return newDirectory(next, rdb, ttl, logger)
}

func newDirectory(next identity.Directory, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func identityKey(id string) string {
	return "identity:" + id
}

func (d *Directory) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	key := identityKey(id)
	raw, err := d.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var out identity.Identity
		if json.Unmarshal(raw, &out) == nil {
			return &out, nil
		}
		d.logger.Warn("discarding unreadable cached identity", "id", id)
	} else if !errors.Is(err, redis.Nil) {
		d.logger.Warn("redis get failed", "key", key, "err", err)
	}

	out, err := d.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(out); err == nil {
		if err := d.rdb.Set(ctx, key, payload, d.ttl).Err(); err != nil {
			d.logger.Warn("redis set failed", "key", key, "err", err)
		}
	}
	return out, nil
}

// FindByRole is not cached; new agents must show up immediately.
func (d *Directory) FindByRole(ctx context.Context, role identity.Role) ([]identity.Identity, error) {
	return d.next.FindByRole(ctx, role)
}
