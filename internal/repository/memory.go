package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cooperative-ai/backend/internal/models"
)

// MemoryUserRepository keeps users in process memory. Records are copied on
// the way in and out so callers never share state, which mirrors a real
// store: two requests that load the same user race on Save.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User

	findCalls []string
}

// NewMemoryUserRepository creates an empty repository
func NewMemoryUserRepository(seed ...*models.User) *MemoryUserRepository {
	r := &MemoryUserRepository{users: make(map[string]models.User)}
	for _, u := range seed {
		r.users[u.ID] = clone(u)
	}
	return r
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.findCalls = append(r.findCalls, id)
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := clone(&u)
	return &out, nil
}

func (r *MemoryUserRepository) Save(_ context.Context, user *models.User) error {
	if err := user.ValidateChats(); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.users[user.ID] = clone(user)
	return nil
}

// FindCalls returns the ids passed to FindByID, in call order
func (r *MemoryUserRepository) FindCalls() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.findCalls))
	copy(out, r.findCalls)
	return out
}

func clone(u *models.User) models.User {
	out := *u
	out.Chats = append(out.Chats[:0:0], u.Chats...)
	return out
}
