package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeSecurityAudit = "security.audit"

	AuditAccountLocked   = "account.locked"
	AuditAccountUnlocked = "account.unlocked"
	AuditLoginSucceeded  = "login.succeeded"
	AuditLoginFailed     = "login.failed"
	AuditPasswordChanged = "password.changed"
	AuditResetIssued     = "reset.issued"
	AuditResetConsumed   = "reset.consumed"
	AuditOTPIssued       = "otp.issued"
	AuditRoleAdded       = "role.added"
	AuditRoleRemoved     = "role.removed"
	AuditRoleAssigned    = "role.assigned"
	AuditRoleRevoked     = "role.revoked"
	AuditUserCreated     = "user.created"
)

// SecurityAuditEvent is the single event shape every state-changing security
// operation publishes. The audit sink subscribes to it off the bus.
type SecurityAuditEvent struct {
	BaseEvent
	Name      string `json:"name"`
	ActorID   *int64 `json:"actor_id,omitempty"`
	SubjectID *int64 `json:"subject_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func NewSecurityAuditEvent(name string, actorID, subjectID *int64, detail string) *SecurityAuditEvent {
	return &SecurityAuditEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeSecurityAudit,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"name":       name,
				"actor_id":   actorID,
				"subject_id": subjectID,
				"detail":     detail,
			},
		},
		Name:      name,
		ActorID:   actorID,
		SubjectID: subjectID,
		Detail:    detail,
	}
}
