package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cooperative-ai/backend/internal/models"
	"cooperative-ai/backend/pkg/cache"
	"cooperative-ai/backend/pkg/logger"
)

const userKeyPrefix = "user:"

// CachedUserRepository adds cache-aside reads in front of another repository.
// Save writes through and invalidates. Cache failures are logged and
// otherwise ignored.
type CachedUserRepository struct {
	next  UserRepository
	store cache.Store
	ttl   time.Duration

	// saves counts invalidations. A read only fills the cache when no save
	// completed between its store load and the fill.
	mu    sync.Mutex
	saves uint64
}

// NewCachedUserRepository wraps next with store
func NewCachedUserRepository(next UserRepository, store cache.Store, ttl time.Duration) *CachedUserRepository {
	return &CachedUserRepository{next: next, store: store, ttl: ttl}
}

func (r *CachedUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	log := logger.FromContext(ctx)
	key := userKeyPrefix + id

	if raw, ok, err := r.store.Get(ctx, key); err != nil {
		log.LogError(err, "user cache read failed", "user_id", id)
	} else if ok {
		var user models.User
		if err := json.Unmarshal(raw, &user); err == nil {
			return &user, nil
		}
		log.Warn("dropping undecodable cache entry", "key", key)
		_ = r.store.Delete(ctx, key)
	}

	r.mu.Lock()
	seen := r.saves
	r.mu.Unlock()

	user, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return user, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saves != seen {
		// The loaded copy may predate that save
		return user, nil
	}
	if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
		log.LogError(err, "user cache write failed", "user_id", id)
	}
	return user, nil
}

// FindByIDFresh reads from the underlying store and leaves the cache alone.
// Callers that modify and save the record load it this way.
func (r *CachedUserRepository) FindByIDFresh(ctx context.Context, id string) (*models.User, error) {
	return r.next.FindByID(ctx, id)
}

func (r *CachedUserRepository) Save(ctx context.Context, user *models.User) error {
	if err := r.next.Save(ctx, user); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if err := r.store.Delete(ctx, userKeyPrefix+user.ID); err != nil {
		logger.FromContext(ctx).LogError(err, "user cache invalidation failed", "user_id", user.ID)
	}
	return nil
}
