package port

import (
	"context"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
)

// RoleResolver answers which roles an actor currently holds. Unknown role
// names are dropped by the implementation.
type RoleResolver interface {
	RolesOf(ctx context.Context, actorID string) (entity.RoleSet, error)
}

// Directory looks up users for step assignment and notification
type Directory interface {
	GetUser(ctx context.Context, id string) (*entity.User, error)

	// FirstUserWithRole returns nil without error when no user holds the role
	FirstUserWithRole(ctx context.Context, role entity.Role) (*entity.User, error)
}

// Notifier delivers a text message to a user
type Notifier interface {
	Notify(ctx context.Context, user *entity.User, message string) error
}
