package auth

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/golang-jwt/jwt/v5"
)

// UserRepository is the persistence surface the authentication state machine
// needs. The failure-counter writes MUST be atomic single statements at the
// storage layer: two concurrent failed logins may never increment from the
// same stale counter value.
type UserRepository interface {
	// FindActiveByIdentifier resolves username, email or employee id against
	// active, admin-verified accounts only.
	FindActiveByIdentifier(ctx context.Context, identifier string) (*userDatamodel.User, error)
	FindActiveByMobile(ctx context.Context, mobile string) (*userDatamodel.User, error)
	GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error)

	// RecordFailedAttempt atomically increments failed_login_count and
	// applies the lock when the threshold is reached, as a no-op when the
	// account is already locked.
	RecordFailedAttempt(ctx context.Context, userID int64, now time.Time) error
	// RecordOTPResend applies the same atomic discipline to otp_resend_count.
	RecordOTPResend(ctx context.Context, userID int64, now time.Time) error
	// RecordSuccess zeroes both counters and stamps last_login_at.
	RecordSuccess(ctx context.Context, userID int64, now time.Time) error

	// StoreOTP persists the code and its expiry together.
	StoreOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	// ClearOTP removes the code and its expiry together.
	ClearOTP(ctx context.Context, userID int64) error

	GetRoleNames(ctx context.Context, userID int64) ([]string, error)
}

// TokenGenerator creates and validates session tokens. Access and refresh
// tokens are validated separately so one can never stand in for the other.
type TokenGenerator interface {
	GenerateAccessToken(userID string, email string) (token string, err error)
	GenerateRefreshToken(userID string, email string) (token string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// ServiceAPI is what the HTTP handler consumes.
type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	AuthenticateOTP(ctx context.Context, dto OTPLoginDTO) (AuthTokens, error)
	RequestOTP(ctx context.Context, dto RequestOTPDTO) error
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	CurrentUser(ctx context.Context, userID int64) (*SessionUser, error)
}

// AuditRecorder matches audit.Recorder without importing it.
type AuditRecorder interface {
	Record(ctx context.Context, name string, actorID, subjectID *int64, detail string)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionUser is the authenticated principal placed on the request context.
type SessionUser struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

func (u *SessionUser) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

func (u *SessionUser) HasAnyRole(names ...string) bool {
	for _, name := range names {
		if u.HasRole(name) {
			return true
		}
	}
	return false
}

// Claims represents JWT token claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

type sessionUserCtxKey struct{}

func ContextWithUser(ctx context.Context, u *SessionUser) context.Context {
	return context.WithValue(ctx, sessionUserCtxKey{}, u)
}

func UserFromContext(ctx context.Context) (*SessionUser, bool) {
	u, ok := ctx.Value(sessionUserCtxKey{}).(*SessionUser)
	return u, ok
}
