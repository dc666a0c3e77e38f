package userRepo

import (
	"context"

	"tutorbook/models"
)

// UserRepository defines read access to the buyer profiles owned by the
// account service.
type UserRepository interface {
	// GetProfile retrieves the pricing and notification slice of a profile.
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}
