package postgres

import (
	"context"

	"github.com/frahmantamala/identity-management/internal/audit"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// AuditSink persists audit entries with GORM.
type AuditSink struct {
	db *gorm.DB
}

func NewAuditSink(db *gorm.DB) audit.Sink {
	return &AuditSink{db: db}
}

func (s *AuditSink) Record(ctx context.Context, entry audit.Entry) error {
	row := userDatamodel.AuditLog{
		EventID:   entry.EventID,
		EventName: entry.EventName,
		ActorID:   entry.ActorID,
		SubjectID: entry.SubjectID,
		Detail:    entry.Detail,
		CreatedAt: entry.At,
	}
	return s.db.WithContext(ctx).Table("audit_logs").Create(&row).Error
}
