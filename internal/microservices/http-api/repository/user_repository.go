package repository

import (
	"context"

	"linkup/internal/microservices/http-api/models"
	"linkup/internal/shared"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(user *models.User) error
	FindByUsername(username string) (*models.User, error)
	FindByID(id string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	// ProfileSummary resolves the small projection the presence broadcaster
	// publishes. Unknown ids surface as an error so the caller can omit them.
	ProfileSummary(ctx context.Context, userID string) (*shared.ProfileSummary, error)
}

// userRepository is the GORM implementation of UserRepository.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of UserRepository in a GORM implementation
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	// check for the error if the user is not found
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		// return nil and the error instead of a zero-value user struct
		// we do it for all query methods
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ProfileSummary(ctx context.Context, userID string) (*shared.ProfileSummary, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Select("id", "username", "avatar_url", "show_online_status").
		First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &shared.ProfileSummary{
		UserID:           user.ID,
		Username:         user.Username,
		AvatarURL:        user.AvatarURL,
		ShowOnlineStatus: user.ShowOnlineStatus,
	}, nil
}
