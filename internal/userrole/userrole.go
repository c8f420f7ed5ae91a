package userrole

import (
	"context"
	"time"

	"github.com/frahmantamala/identity-management/internal/role"
)

// Assignment links one user to one role. The pair is composite-unique.
type Assignment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	RoleName  string    `json:"role_name"`
	GrantedBy *int64    `json:"granted_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	GetByUser(ctx context.Context, userID int64) ([]Assignment, error)
	// Insert returns internal.ErrDuplicateAssignment when the pair exists.
	Insert(ctx context.Context, userID, roleID int64, grantedBy *int64) error
	Delete(ctx context.Context, userID, roleID int64) error
	// Replace applies adds and removes for one user in a single transaction.
	Replace(ctx context.Context, userID int64, addRoleIDs, removeRoleIDs []int64, grantedBy *int64) error
	// CountAdminTier counts assignments of the named roles across ALL users.
	CountAdminTier(ctx context.Context, roleNames []string) (int64, error)
}

// Vocabulary is the slice of the role service the assignment service needs.
type Vocabulary interface {
	Resolve(ctx context.Context, raw string) (role.Definition, error)
	ListRoles(ctx context.Context) []role.Definition
}

// AuditRecorder matches audit.Recorder without importing it.
type AuditRecorder interface {
	Record(ctx context.Context, name string, actorID, subjectID *int64, detail string)
}

// ChangeSet reports what SetRoles actually did, for audit logging.
type ChangeSet struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}
