package user

import (
	"context"

	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
)

// Repository persists the user aggregate for administrative flows. Uniqueness
// of username, email, employee id and mobile is enforced by the storage layer
// and surfaces as internal.ErrDuplicateUser.
type Repository interface {
	Create(ctx context.Context, u *userDatamodel.User) error
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	List(ctx context.Context, limit, offset int) ([]userDatamodel.User, error)
	// UpdateCredential persists the password fields and the forced-change
	// flag together.
	UpdateCredential(ctx context.Context, u *userDatamodel.User) error
	// ApplyUnlock persists the unlock transition: lock cleared, counters
	// zeroed, temporary credential stored, forced change set. One statement.
	ApplyUnlock(ctx context.Context, u *userDatamodel.User) error
}

// RoleAssigner is the slice of the role assignment service used when
// creating users with initial roles.
type RoleAssigner interface {
	Assign(ctx context.Context, actorID *int64, userID int64, rawRole string) error
}

// Notifier matches notification.Sender without importing it.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// AuditRecorder matches audit.Recorder without importing it.
type AuditRecorder interface {
	Record(ctx context.Context, name string, actorID, subjectID *int64, detail string)
}

// Profile is the user shape returned to API callers. Credential and counter
// fields never leave the service.
type Profile struct {
	ID              int64    `json:"id"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	EmployeeID      string   `json:"employee_id"`
	Mobile          string   `json:"mobile"`
	Name            string   `json:"name"`
	IsActive        bool     `json:"is_active"`
	IsEmailVerified bool     `json:"is_email_verified"`
	IsAdminVerified bool     `json:"is_admin_verified"`
	Locked          bool     `json:"locked"`
	Roles           []string `json:"roles,omitempty"`
}
