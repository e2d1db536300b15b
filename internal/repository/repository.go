package repository

import (
	"context"
	"errors"

	"cooperative-ai/backend/internal/models"
)

// ErrUserNotFound is returned by FindByID when no record has the given id
var ErrUserNotFound = errors.New("user not found")

// UserRepository loads and stores whole user records, chat history included.
// Save replaces the stored record; concurrent saves for the same id are
// last-write-wins.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

// FreshReader is implemented by repositories that serve reads from a cache
// and can bypass it.
type FreshReader interface {
	FindByIDFresh(ctx context.Context, id string) (*models.User, error)
}

// FindForUpdate loads a record the caller is about to modify and save. It
// skips any read cache so the save never replaces newer stored history.
func FindForUpdate(ctx context.Context, repo UserRepository, id string) (*models.User, error) {
	if fr, ok := repo.(FreshReader); ok {
		return fr.FindByIDFresh(ctx, id)
	}
	return repo.FindByID(ctx, id)
}
