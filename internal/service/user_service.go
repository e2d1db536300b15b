package service

import (
	"context"
	"errors"
	"fmt"

	"cooperative-ai/backend/internal/models"
	"cooperative-ai/backend/internal/repository"
)

// UserService provisions user records. Sign-up and login live in another
// service; this one only makes sure a record exists for an issued token.
type UserService struct {
	users repository.UserRepository
}

// NewUserService creates a new user service
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// EnsureUser returns the user with id, creating an empty record when none
// exists. An existing record is returned unchanged.
func (s *UserService) EnsureUser(ctx context.Context, id, name, email string) (*models.User, bool, error) {
	if id == "" {
		return nil, false, errors.New("user id is required")
	}

	user, err := repository.FindForUpdate(ctx, s.users, id)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, err
	}

	user = &models.User{ID: id, Name: name, Email: email}
	user.ClearChats()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, false, fmt.Errorf("create user %s: %w", id, err)
	}
	return user, true, nil
}
