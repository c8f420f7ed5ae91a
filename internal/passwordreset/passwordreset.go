package passwordreset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
)

const (
	// DefaultTokenTTL bounds how long an issued token stays redeemable.
	DefaultTokenTTL = 30 * time.Minute
	// tokenBytes of randomness per token. The token is high entropy and
	// single use, so a fast hash of it is safe to persist.
	tokenBytes = 32
)

// Repository is the persistence surface for the reset lifecycle. Consumption
// must be a single guarded statement so a token can never be redeemed twice.
type Repository interface {
	FindActiveByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	// StoreResetToken overwrites any prior token; one active token per user.
	StoreResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken persists the new password fields and clears the token
	// pair in one statement guarded by the stored hash. It returns
	// internal.ErrInvalidResetToken when the guard does not match, which is
	// how a second redemption of the same token fails.
	ConsumeResetToken(ctx context.Context, u *userDatamodel.User, tokenHash string) error
}

// Notifier matches notification.Sender without importing it.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// AuditRecorder matches audit.Recorder without importing it.
type AuditRecorder interface {
	Record(ctx context.Context, name string, actorID, subjectID *int64, detail string)
}

type RequestResetDTO struct {
	Email string `json:"email"`
}

type ResetPasswordDTO struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// NewResetToken generates a URL-safe plaintext token and the hash that gets
// persisted. The plaintext is returned exactly once.
func NewResetToken() (plaintext, hash string, err error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(raw)
	return plaintext, HashToken(plaintext), nil
}

// HashToken is the one-way mapping from plaintext token to stored form.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// VerifyToken fails closed: no stored token, expired token, malformed or
// mismatched candidates are all plain rejections.
func VerifyToken(u *userDatamodel.User, candidate string, now time.Time) bool {
	if u == nil || u.ResetTokenHash == nil || u.ResetTokenExpiresAt == nil {
		return false
	}
	if now.After(*u.ResetTokenExpiresAt) {
		return false
	}
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.ResetTokenHash), []byte(HashToken(candidate))) == 1
}
