package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
	"github.com/redis/go-redis/v9"
)

// memRedis implements the two commands the directory uses.
type memRedis struct {
	redis.Cmdable
	data map[string]string
	gets int
	sets int
	down bool
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.gets++
	if m.down {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.sets++
	if m.down {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	m.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

type countingDirectory struct {
	calls int
	users map[string]identity.Identity
}

func (d *countingDirectory) FindByID(_ context.Context, id string) (*identity.Identity, error) {
	d.calls++
	u, ok := d.users[id]
	if !ok {
		return nil, errs.NotFound("user_not_found")
	}
	return &u, nil
}

func (d *countingDirectory) FindByRole(_ context.Context, _ identity.Role) ([]identity.Identity, error) {
	d.calls++
	return []identity.Identity{}, nil
}

func TestDirectoryReadThrough(t *testing.T) {
	next := &countingDirectory{users: map[string]identity.Identity{
		"a1": {ID: "a1", Role: identity.RoleAgent, DisplayName: "Ravi", AgentCode: "AGT1"},
	}}
	rdb := &memRedis{data: map[string]string{}}
	dir := newDirectory(next, rdb, time.Minute, nil)

	for i := 0; i < 3; i++ {
		got, err := dir.FindByID(context.Background(), "a1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.DisplayName != "Ravi" || got.AgentCode != "AGT1" || got.Role != identity.RoleAgent {
			t.Fatalf("unexpected identity %+v", got)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected one backing lookup, got %d", next.calls)
	}
	if rdb.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", rdb.sets)
	}
}

func TestDirectoryFallsBackWhenRedisDown(t *testing.T) {
	next := &countingDirectory{users: map[string]identity.Identity{"b1": {ID: "b1", Role: identity.RoleBank}}}
	dir := newDirectory(next, &memRedis{data: map[string]string{}, down: true}, time.Minute, nil)

	got, err := dir.FindByID(context.Background(), "b1")
	if err != nil || got.ID != "b1" {
		t.Fatalf("expected fallback lookup, got %+v %v", got, err)
	}
}

func TestDirectoryDoesNotCacheMisses(t *testing.T) {
	next := &countingDirectory{users: map[string]identity.Identity{}}
	rdb := &memRedis{data: map[string]string{}}
	dir := newDirectory(next, rdb, time.Minute, nil)

	_, err := dir.FindByID(context.Background(), "missing")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if rdb.sets != 0 {
		t.Fatalf("miss must not be cached")
	}
}

func TestNewDirectoryWithoutRedisIsPassthrough(t *testing.T) {
	next := &countingDirectory{}
	if got := NewDirectory(next, nil, time.Minute, nil); got != identity.Directory(next) {
		t.Fatalf("expected the backing directory back")
	}
}
