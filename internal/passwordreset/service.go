package passwordreset

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/core/common/validation"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/frahmantamala/identity-management/internal/credential"
)

// Service owns the self-service reset flow: issue a token out-of-band, then
// trade it for a new password exactly once.
type Service struct {
	repo     Repository
	creds    *credential.Store
	notifier Notifier
	recorder AuditRecorder
	logger   *slog.Logger
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(
	repo Repository,
	creds *credential.Store,
	notifier Notifier,
	recorder AuditRecorder,
	logger *slog.Logger,
	tokenTTL time.Duration,
) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		repo:     repo,
		creds:    creds,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RequestReset issues a fresh token and delivers it out-of-band. Unknown
// addresses are silently accepted: the endpoint must not reveal which emails
// have accounts. A new request overwrites the previous token.
func (s *Service) RequestReset(ctx context.Context, dto RequestResetDTO) error {
	if err := validation.ValidateEmail(dto.Email); err != nil {
		return err
	}

	u, err := s.repo.FindActiveByEmail(ctx, dto.Email)
	if err != nil {
		s.logger.Debug("reset requested for unknown email")
		return nil
	}

	plaintext, hash, err := NewResetToken()
	if err != nil {
		return errors.NewInternalError("failed to generate reset token", err)
	}

	expiresAt := s.now().Add(s.tokenTTL)
	if err := s.repo.StoreResetToken(ctx, u.ID, hash, expiresAt); err != nil {
		s.logger.Error("failed to store reset token", "user_id", u.ID, "error", err)
		return errors.NewInternalError("failed to store reset token", err)
	}

	// delivery failures are logged, never surfaced: the token is stored and
	// a retry of the request will overwrite it anyway
	if err := s.notifier.Send(ctx, u.Email, "Your password reset token is "+plaintext); err != nil {
		s.logger.Error("reset token delivery failed", "user_id", u.ID, "error", err)
	}

	s.recorder.Record(ctx, events.AuditResetIssued, nil, &u.ID, "")
	s.logger.Info("reset token issued", "user_id", u.ID)
	return nil
}

// ResetPassword redeems a token for a new password. Verification fails
// closed; the write that consumes the token and the one that stores the new
// hash are the same statement, so the token is strictly one-time even under
// concurrent redemption.
func (s *Service) ResetPassword(ctx context.Context, dto ResetPasswordDTO) error {
	if err := validation.ValidateEmail(dto.Email); err != nil {
		return err
	}

	now := s.now()
	u, err := s.repo.FindActiveByEmail(ctx, dto.Email)
	if err != nil {
		return errors.ErrInvalidResetToken
	}

	if !VerifyToken(u, dto.Token, now) {
		s.logger.Debug("reset token rejected", "user_id", u.ID)
		return errors.ErrInvalidResetToken
	}

	if err := s.creds.SetPassword(u, dto.NewPassword); err != nil {
		return err
	}
	u.RequiresPasswordChange = false

	tokenHash := HashToken(dto.Token)
	if err := s.repo.ConsumeResetToken(ctx, u, tokenHash); err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return appErr
		}
		s.logger.Error("failed to consume reset token", "user_id", u.ID, "error", err)
		return errors.NewInternalError("failed to reset password", err)
	}

	s.recorder.Record(ctx, events.AuditResetConsumed, &u.ID, &u.ID, "")
	s.recorder.Record(ctx, events.AuditPasswordChanged, &u.ID, &u.ID, "self-service reset")
	s.logger.Info("password reset", "user_id", u.ID)
	return nil
}
