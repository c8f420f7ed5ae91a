package role

import (
	"context"
	"time"
)

// ProtectedRole can never be removed from the vocabulary. The system always
// needs at least one role that carries full privileges.
const ProtectedRole = "superadmin"

// AdminTierRoles are privileged enough that the system must always retain at
// least one holder across all users.
var AdminTierRoles = map[string]bool{
	ProtectedRole: true,
	"admin":       true,
}

// BuiltinRoles is the fail-open vocabulary used when domain introspection is
// unavailable. Listing roles must never fail a request.
var BuiltinRoles = []Definition{
	{Name: ProtectedRole, Protected: true},
	{Name: "admin"},
	{Name: "staff"},
	{Name: "member"},
}

// Definition is one member of the role vocabulary.
type Definition struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Label       string    `json:"label,omitempty"`
	Description string    `json:"description,omitempty"`
	Protected   bool      `json:"protected"`
	CreatedAt   time.Time `json:"created_at"`
}

// Metadata is the display information persisted per role identifier.
type Metadata struct {
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Repository is the persistent role domain. Insert and Remove correspond to
// the domain-migration operations: Insert is additive, Remove must verify no
// assignment references the role and delete atomically.
type Repository interface {
	// ListDomainValues is the introspection port: the ordered identifiers
	// currently in the domain.
	ListDomainValues(ctx context.Context) ([]string, error)
	GetAll(ctx context.Context) ([]Definition, error)
	Insert(ctx context.Context, name string, protected bool) (Definition, error)
	// Remove deletes the role iff zero assignments reference it, in one
	// transaction. Returns internal.ErrRoleInUse otherwise.
	Remove(ctx context.Context, name string) error
	CountAssignments(ctx context.Context, name string) (int64, error)
}

// MetadataStore persists the optional display metadata map atomically.
type MetadataStore interface {
	Load() (map[string]Metadata, error)
	Save(map[string]Metadata) error
}

// AuditRecorder matches audit.Recorder without importing it.
type AuditRecorder interface {
	Record(ctx context.Context, name string, actorID, subjectID *int64, detail string)
}
