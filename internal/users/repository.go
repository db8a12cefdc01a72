package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrDuplicateUsername is returned by Create when the username is taken.
var ErrDuplicateUsername = errors.New("username already exists")

type Repository interface {
	Create(ctx context.Context, user *User) error
	// FindByUsername returns nil, nil when no user matches.
	FindByUsername(ctx context.Context, username string) (*User, error)
	ListIDsByRole(ctx context.Context, role Role) ([]int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, user *User) error {
	existing, err := r.FindByUsername(ctx, user.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateUsername
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *gormRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %q: %w", username, err)
	}
	return &user, nil
}

func (r *gormRepository) ListIDsByRole(ctx context.Context, role Role) ([]int64, error) {
	ids := []int64{}
	err := r.db.WithContext(ctx).Model(&User{}).Where("role = ?", role).Order("id").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", role, err)
	}
	return ids, nil
}
