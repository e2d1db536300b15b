package service

import (
	"context"
	stderrors "errors"

	"cooperative-ai/backend/internal/ai"
	"cooperative-ai/backend/internal/models"
	"cooperative-ai/backend/internal/repository"
	"cooperative-ai/backend/pkg/errors"
	"cooperative-ai/backend/pkg/jwt"
	"cooperative-ai/backend/pkg/logger"
)

// ChatService runs the chat use cases against the user store and the AI
// gateway. Every error it returns is an *errors.AppError.
type ChatService struct {
	users   repository.UserRepository
	gateway ai.Gateway
}

// NewChatService creates a new chat service
func NewChatService(users repository.UserRepository, gateway ai.Gateway) *ChatService {
	return &ChatService{users: users, gateway: gateway}
}

// CreateCompletion appends message to the caller's history, asks the gateway
// for a reply and appends that too. The user message is stored before the
// gateway is called, so a failed call leaves it in place without a reply.
func (s *ChatService) CreateCompletion(ctx context.Context, identity jwt.Identity, message string) ([]models.ChatMessage, error) {
	log := logger.FromContext(ctx)

	user, err := s.loadUser(ctx, identity, true)
	if err != nil {
		return nil, err
	}

	transcript := append(user.Transcript(), message)

	user.AppendMessage(models.RoleUser, message)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, errors.NewPersistenceError(err)
	}

	reply, err := s.gateway.Complete(ctx, transcript)
	if err != nil {
		log.LogError(err, "AI completion failed", "user_id", user.ID, "transcript_len", len(transcript))
		return nil, errors.NewUpstreamError(err)
	}

	user.AppendMessage(models.RoleModel, reply)
	if err := s.users.Save(ctx, user); err != nil {
		return nil, errors.NewPersistenceError(err)
	}

	return user.History(), nil
}

// ListHistory returns the stored history of ownerID, which must be the
// caller. An empty ownerID means the caller.
func (s *ChatService) ListHistory(ctx context.Context, identity jwt.Identity, ownerID string) ([]models.ChatMessage, error) {
	user, err := s.loadOwned(ctx, identity, ownerID, false)
	if err != nil {
		return nil, err
	}
	return user.History(), nil
}

// ClearHistory empties the history of ownerID. Clearing an empty history
// succeeds.
func (s *ChatService) ClearHistory(ctx context.Context, identity jwt.Identity, ownerID string) error {
	user, err := s.loadOwned(ctx, identity, ownerID, true)
	if err != nil {
		return err
	}

	user.ClearChats()
	if err := s.users.Save(ctx, user); err != nil {
		return errors.NewPersistenceError(err)
	}
	return nil
}

// loadUser loads the caller. forUpdate bypasses the read cache for callers
// that save the record afterwards.
func (s *ChatService) loadUser(ctx context.Context, identity jwt.Identity, forUpdate bool) (*models.User, error) {
	if identity.UserID == "" {
		return nil, errors.NewUnauthorizedError("USER_NOT_REGISTERED", errors.MsgUserNotRegistered)
	}

	var (
		user *models.User
		err  error
	)
	if forUpdate {
		user, err = repository.FindForUpdate(ctx, s.users, identity.UserID)
	} else {
		user, err = s.users.FindByID(ctx, identity.UserID)
	}
	if stderrors.Is(err, repository.ErrUserNotFound) {
		return nil, errors.NewUnauthorizedError("USER_NOT_REGISTERED", errors.MsgUserNotRegistered)
	}
	if err != nil {
		return nil, errors.NewPersistenceError(err)
	}
	return user, nil
}

// loadOwned loads the caller and then checks that the requested resource
// belongs to them. Existence is checked first.
func (s *ChatService) loadOwned(ctx context.Context, identity jwt.Identity, ownerID string, forUpdate bool) (*models.User, error) {
	user, err := s.loadUser(ctx, identity, forUpdate)
	if err != nil {
		return nil, err
	}

	if ownerID == "" {
		ownerID = identity.UserID
	}
	if ownerID != identity.UserID || user.ID != identity.UserID {
		logger.FromContext(ctx).Warn("Ownership check failed",
			"user_id", identity.UserID,
			"owner_id", ownerID,
		)
		return nil, errors.NewUnauthorizedError("PERMISSION_MISMATCH", errors.MsgPermissionMismatch)
	}
	return user, nil
}
