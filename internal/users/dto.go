package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidmarceau/groupline-backend/pkg/db/models"
)

// CreateUserDTO carries the data needed to persist a user.
type CreateUserDTO struct {
	Email        string
	DisplayName  string
	PasswordHash string
	SystemRole   *string
}

// ToModel converts the DTO into a persistable model with a fresh id.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        d.Email,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		SystemRole:   d.SystemRole,
		IsActive:     true,
	}
}

// UserDTO is the transport shape for a user profile.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FromModel converts a persisted user into its DTO.
func FromModel(user *models.User) *UserDTO {
	if user == nil {
		return nil
	}
	return &UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}
