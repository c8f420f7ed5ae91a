package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/identity-management/internal/core/events"
)

// Sink is where audit entries end up. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

type Entry struct {
	EventID   string
	EventName string
	ActorID   *int64
	SubjectID *int64
	Detail    string
	At        time.Time
}

// Recorder publishes audit events onto the bus. Delivery to the sink happens
// on a subscriber goroutine, so a failing sink can never roll back the
// security operation that produced the event.
type Recorder struct {
	bus    *events.EventBus
	logger *slog.Logger
}

func NewRecorder(bus *events.EventBus, logger *slog.Logger) *Recorder {
	return &Recorder{bus: bus, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, name string, actorID, subjectID *int64, detail string) {
	event := events.NewSecurityAuditEvent(name, actorID, subjectID, detail)
	if err := r.bus.Publish(ctx, event); err != nil {
		r.logger.Error("failed to publish audit event", "event", name, "error", err)
	}
}

// RegisterSink subscribes the sink to audit events on the bus.
func RegisterSink(bus *events.EventBus, sink Sink, logger *slog.Logger) {
	bus.Subscribe(events.EventTypeSecurityAudit, func(ctx context.Context, event events.Event) error {
		auditEvent, ok := event.(*events.SecurityAuditEvent)
		if !ok {
			logger.Warn("unexpected event payload on audit topic", "event_id", event.EventID())
			return nil
		}

		entry := Entry{
			EventID:   auditEvent.EventID(),
			EventName: auditEvent.Name,
			ActorID:   auditEvent.ActorID,
			SubjectID: auditEvent.SubjectID,
			Detail:    auditEvent.Detail,
			At:        auditEvent.OccurredAt(),
		}

		if err := sink.Record(ctx, entry); err != nil {
			// audit failures are logged, never propagated to the operation
			logger.Error("audit sink write failed",
				"event", entry.EventName,
				"event_id", entry.EventID,
				"error", err)
		}
		return nil
	})
}
