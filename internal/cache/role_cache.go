package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"graderservice/internal/model"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type RoleGetter interface {
	GetRole(ctx context.Context, username string, lectureId uuid.UUID) (*model.Role, error)
}

// CachedRoleRepository keeps found roles for ttl. Lookups that fail,
// including absent roles, always go to the underlying repository.
type CachedRoleRepository struct {
	inner RoleGetter
	cache Cache
	ttl   time.Duration
}

func NewCachedRoleRepository(inner RoleGetter, cache Cache, ttl time.Duration) *CachedRoleRepository {
	return &CachedRoleRepository{inner: inner, cache: cache, ttl: ttl}
}

func roleKey(username string, lectureId uuid.UUID) string {
	return fmt.Sprintf("role:%s:%s", lectureId, username)
}

func (r *CachedRoleRepository) GetRole(ctx context.Context, username string, lectureId uuid.UUID) (*model.Role, error) {
	key := roleKey(username, lectureId)
	if data, ok := r.cache.Get(ctx, key); ok {
		var role model.Role
		if err := json.Unmarshal(data, &role); err == nil && role.Scope.IsValid() {
			return &role, nil
		}
		r.cache.Delete(ctx, key)
	}

	role, err := r.inner.GetRole(ctx, username, lectureId)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(role); err == nil {
		r.cache.Set(ctx, key, data, r.ttl)
	}
	return role, nil
}
