package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Plan        string    `json:"plan"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Progress struct {
	UserID           string    `json:"user_id"`
	CurrentWorkshop  string    `json:"current_workshop"`
	CompletedLessons []string  `json:"completed_lessons"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Grant struct {
	UserID       string
	ResourceType string
	ResourceID   string
}

// Repository is the data-access collaborator behind the user-management
// endpoint.
type Repository interface {
	Profile(ctx context.Context, userID string) (Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) (Profile, error)
	HasAccess(ctx context.Context, userID, resourceType, resourceID string) (bool, error)
	Progress(ctx context.Context, userID string) (Progress, error)
	SaveProgress(ctx context.Context, progress Progress) (Progress, error)
}
