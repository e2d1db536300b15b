package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cooperative-ai/backend/internal/models"

	"gorm.io/gorm"
)

// GormUserRepository stores users in a SQL database, chats as a jsonb column
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a repository over db
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Migrate creates or updates the users table
func (r *GormUserRepository) Migrate() error {
	return r.db.AutoMigrate(&models.User{})
}

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return &user, nil
}

func (r *GormUserRepository) Save(ctx context.Context, user *models.User) error {
	if err := user.ValidateChats(); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return nil
}

// Ping checks the database connection
func (r *GormUserRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
