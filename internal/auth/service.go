package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/frahmantamala/identity-management/internal/credential"
	"github.com/frahmantamala/identity-management/internal/lockout"
	"github.com/frahmantamala/identity-management/internal/notification"
)

const otpCodeLength = 6

// Service runs the authentication state machine. Every rejection maps to one
// of three reasons: invalid credentials, account locked, or password change
// required. Unknown identifiers and wrong passwords produce the identical
// invalid-credentials answer so callers cannot probe which accounts exist.
type Service struct {
	repo     UserRepository
	creds    *credential.Store
	tokens   TokenGenerator
	notifier notification.Sender
	recorder AuditRecorder
	logger   *slog.Logger
	otpTTL   time.Duration
	now      func() time.Time
}

func NewService(
	repo UserRepository,
	creds *credential.Store,
	tokens TokenGenerator,
	notifier notification.Sender,
	recorder AuditRecorder,
	logger *slog.Logger,
	otpTTL time.Duration,
) *Service {
	if otpTTL <= 0 {
		otpTTL = lockout.DefaultOTPTTL
	}
	return &Service{
		repo:     repo,
		creds:    creds,
		tokens:   tokens,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		otpTTL:   otpTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Authenticate runs the password login flow:
// resolve -> lock check -> password check -> expiry check -> success.
// A failed password check is counted before the caller hears about it.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}

	now := s.now()
	u, err := s.repo.FindActiveByIdentifier(ctx, dto.Identifier)
	if err != nil {
		s.logger.Debug("login rejected: identifier not resolvable")
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	if lockout.IsLocked(u, now) {
		s.recorder.Record(ctx, events.AuditLoginFailed, nil, &u.ID, "account locked")
		return AuthTokens{}, errors.ErrAccountLocked
	}

	if !s.creds.CheckPassword(u, dto.Password) {
		s.registerFailure(ctx, u, "password mismatch")
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	if u.RequiresPasswordChange || s.creds.IsPasswordExpired(u) {
		// not a failed attempt: the caller proved the credential
		s.recorder.Record(ctx, events.AuditLoginFailed, nil, &u.ID, "password change required")
		return AuthTokens{}, errors.ErrPasswordChangeRequired
	}

	if err := s.repo.RecordSuccess(ctx, u.ID, now); err != nil {
		s.logger.Error("failed to record successful login", "user_id", u.ID, "error", err)
		return AuthTokens{}, errors.NewInternalError("failed to record login", err)
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return AuthTokens{}, err
	}

	s.recorder.Record(ctx, events.AuditLoginSucceeded, &u.ID, &u.ID, "password")
	s.logger.Info("login succeeded", "user_id", u.ID)
	return tokens, nil
}

// RequestOTP issues a fresh code to the account behind the mobile number.
// Unknown numbers are silently accepted so the endpoint cannot be used to
// enumerate registered mobiles. Every issuance counts against the resend
// threshold; the request that crosses it locks the account instead of
// sending a code.
func (s *Service) RequestOTP(ctx context.Context, dto RequestOTPDTO) error {
	if err := dto.Validate(); err != nil {
		return errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}

	now := s.now()
	u, err := s.repo.FindActiveByMobile(ctx, dto.Mobile)
	if err != nil {
		s.logger.Debug("otp requested for unknown mobile")
		return nil
	}

	if lockout.IsLocked(u, now) {
		return errors.ErrAccountLocked
	}

	if err := s.repo.RecordOTPResend(ctx, u.ID, now); err != nil {
		s.logger.Error("failed to record otp resend", "user_id", u.ID, "error", err)
		return errors.NewInternalError("failed to record otp resend", err)
	}

	updated, err := s.repo.GetByID(ctx, u.ID)
	if err == nil && lockout.IsLocked(updated, now) {
		s.recorder.Record(ctx, events.AuditAccountLocked, nil, &u.ID, "otp resend threshold reached")
		s.logger.Warn("account locked by otp resend threshold", "user_id", u.ID)
		return errors.ErrAccountLocked
	}

	code, err := generateOTPCode()
	if err != nil {
		return errors.NewInternalError("failed to generate otp", err)
	}

	expiresAt := now.Add(s.otpTTL)
	if err := s.repo.StoreOTP(ctx, u.ID, code, expiresAt); err != nil {
		s.logger.Error("failed to store otp", "user_id", u.ID, "error", err)
		return errors.NewInternalError("failed to store otp", err)
	}

	// delivery is best effort; the stored code stays valid either way
	if err := s.notifier.Send(ctx, u.Mobile, "Your verification code is "+code); err != nil {
		s.logger.Error("otp delivery failed", "user_id", u.ID, "error", err)
	}

	s.recorder.Record(ctx, events.AuditOTPIssued, nil, &u.ID, "")
	return nil
}

// AuthenticateOTP is the OTP login flow. It has the same shape as password
// login with the OTP comparison in place of the password check. A consumed
// code is cleared before tokens are issued.
func (s *Service) AuthenticateOTP(ctx context.Context, dto OTPLoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
	}

	now := s.now()
	u, err := s.repo.FindActiveByMobile(ctx, dto.Mobile)
	if err != nil {
		s.logger.Debug("otp login rejected: mobile not resolvable")
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	if lockout.IsLocked(u, now) {
		s.recorder.Record(ctx, events.AuditLoginFailed, nil, &u.ID, "account locked")
		return AuthTokens{}, errors.ErrAccountLocked
	}

	if !verifyOTP(u, dto.Code, now) {
		s.registerFailure(ctx, u, "otp mismatch")
		return AuthTokens{}, errors.ErrInvalidCredentials
	}

	if u.RequiresPasswordChange || s.creds.IsPasswordExpired(u) {
		s.recorder.Record(ctx, events.AuditLoginFailed, nil, &u.ID, "password change required")
		return AuthTokens{}, errors.ErrPasswordChangeRequired
	}

	if err := s.repo.ClearOTP(ctx, u.ID); err != nil {
		s.logger.Error("failed to clear otp", "user_id", u.ID, "error", err)
		return AuthTokens{}, errors.NewInternalError("failed to clear otp", err)
	}
	if err := s.repo.RecordSuccess(ctx, u.ID, now); err != nil {
		s.logger.Error("failed to record successful login", "user_id", u.ID, "error", err)
		return AuthTokens{}, errors.NewInternalError("failed to record login", err)
	}

	tokens, err := s.issueTokens(u)
	if err != nil {
		return AuthTokens{}, err
	}

	s.recorder.Record(ctx, events.AuditLoginSucceeded, &u.ID, &u.ID, "otp")
	s.logger.Info("login succeeded", "user_id", u.ID, "method", "otp")
	return tokens, nil
}

// RefreshTokens exchanges a valid refresh token for a fresh pair. The account
// is re-checked so a lock applied after login cuts the session short.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, errors.NewUnauthorizedError("invalid refresh token", errors.ErrCodeInvalidToken)
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return AuthTokens{}, errors.NewUnauthorizedError("invalid refresh token", errors.ErrCodeInvalidToken)
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return AuthTokens{}, errors.NewUnauthorizedError("invalid refresh token", errors.ErrCodeInvalidToken)
	}
	if !u.IsActive || lockout.IsLocked(u, s.now()) {
		return AuthTokens{}, errors.ErrAccountLocked
	}

	return s.issueTokens(u)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid or expired token", errors.ErrCodeInvalidToken)
	}
	return claims, nil
}

// CurrentUser loads the principal plus role names for the request context.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*SessionUser, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.NewUnauthorizedError("user not found", errors.ErrCodeUserNotFound)
	}
	if !u.IsActive {
		return nil, errors.ErrUserInactive
	}

	roles, err := s.repo.GetRoleNames(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load roles", "user_id", userID, "error", err)
		return nil, errors.NewInternalError("failed to load roles", err)
	}

	return &SessionUser{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Roles: roles,
	}, nil
}

// registerFailure counts a failed attempt and reports the lock transition to
// the audit trail when this attempt was the one that crossed the threshold.
func (s *Service) registerFailure(ctx context.Context, u *userDatamodel.User, detail string) {
	now := s.now()
	if err := s.repo.RecordFailedAttempt(ctx, u.ID, now); err != nil {
		s.logger.Error("failed to record failed attempt", "user_id", u.ID, "error", err)
	}
	s.recorder.Record(ctx, events.AuditLoginFailed, nil, &u.ID, detail)

	updated, err := s.repo.GetByID(ctx, u.ID)
	if err == nil && !lockout.IsLocked(u, now) && lockout.IsLocked(updated, now) {
		s.recorder.Record(ctx, events.AuditAccountLocked, nil, &u.ID, "failed attempt threshold reached")
		s.logger.Warn("account locked by failed attempts", "user_id", u.ID)
	}
}

func (s *Service) issueTokens(u *userDatamodel.User) (AuthTokens, error) {
	id := strconv.FormatInt(u.ID, 10)
	access, err := s.tokens.GenerateAccessToken(id, u.Email)
	if err != nil {
		s.logger.Error("failed to generate access token", "user_id", u.ID, "error", err)
		return AuthTokens{}, errors.NewInternalError("failed to generate token", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(id, u.Email)
	if err != nil {
		s.logger.Error("failed to generate refresh token", "user_id", u.ID, "error", err)
		return AuthTokens{}, errors.NewInternalError("failed to generate token", err)
	}
	return AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// verifyOTP checks the stored pair in constant time. A missing or expired
// code is a plain mismatch.
func verifyOTP(u *userDatamodel.User, code string, now time.Time) bool {
	if u.OTPCode == nil || u.OTPExpiresAt == nil {
		return false
	}
	if now.After(*u.OTPExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.OTPCode), []byte(code)) == 1
}

func generateOTPCode() (string, error) {
	digits := make([]byte, otpCodeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
