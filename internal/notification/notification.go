package notification

import (
	"context"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/identity-management/internal"
)

// Sender delivers short out-of-band messages (SMS or email) to a user.
// Deliveries are best-effort: callers log failures and move on, and no
// implementation may block on a database lock or transaction.
type Sender interface {
	Send(ctx context.Context, destination, message string) error
}

// NewDeliveryError wraps a provider failure.
func NewDeliveryError(cause error) *errors.AppError {
	return &errors.AppError{
		Type:       errors.ErrorTypeExternal,
		Code:       errors.ErrCodeDeliveryFailed,
		Message:    "notification delivery failed",
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// LogSender is the development fallback used when no gateway is configured.
// It logs the destination but never the message body.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, destination, _ string) error {
	s.Logger.Info("notification delivery skipped: no gateway configured", "destination", destination)
	return nil
}
