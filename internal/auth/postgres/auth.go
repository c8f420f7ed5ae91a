package postgres

import (
	"context"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/auth"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/lockout"
	"gorm.io/gorm"
)

// Repository persists the authentication aggregate. The failure counters are
// written with single UPDATE statements that carry the lock condition, so
// concurrent attempts always increment the database value rather than a
// stale in-memory copy.
type Repository struct {
	db     *gorm.DB
	policy lockout.Policy
}

func NewRepository(db *gorm.DB, policy lockout.Policy) auth.UserRepository {
	return &Repository{db: db, policy: policy}
}

func (r *Repository) FindActiveByIdentifier(ctx context.Context, identifier string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("(username = ? OR email = ? OR employee_id = ?) AND is_active = ? AND is_admin_verified = ?",
			identifier, identifier, identifier, true, true).
		First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) FindActiveByMobile(ctx context.Context, mobile string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("mobile = ? AND is_active = ? AND is_admin_verified = ?", mobile, true, true).
		First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).First(&u, userID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// RecordFailedAttempt increments the counter and applies the lock in the same
// statement the moment the incremented value reaches the threshold. Rows that
// are already locked do not match the predicate and stay untouched.
func (r *Repository) RecordFailedAttempt(ctx context.Context, userID int64, now time.Time) error {
	lockUntil := now.Add(r.policy.LockDuration)
	return r.db.WithContext(ctx).Exec(`
		UPDATE users
		SET failed_login_count = failed_login_count + 1,
		    locked_until = CASE WHEN failed_login_count + 1 >= ? THEN ? ELSE locked_until END,
		    updated_at = ?
		WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)`,
		r.policy.Threshold, lockUntil, now, userID, now).Error
}

// RecordOTPResend mirrors RecordFailedAttempt for the resend counter, against
// the resend threshold.
func (r *Repository) RecordOTPResend(ctx context.Context, userID int64, now time.Time) error {
	lockUntil := now.Add(r.policy.LockDuration)
	return r.db.WithContext(ctx).Exec(`
		UPDATE users
		SET otp_resend_count = otp_resend_count + 1,
		    locked_until = CASE WHEN otp_resend_count + 1 >= ? THEN ? ELSE locked_until END,
		    updated_at = ?
		WHERE id = ? AND (locked_until IS NULL OR locked_until <= ?)`,
		r.policy.OTPThreshold, lockUntil, now, userID, now).Error
}

func (r *Repository) RecordSuccess(ctx context.Context, userID int64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"failed_login_count": 0,
			"otp_resend_count":   0,
			"last_login_at":      now,
			"updated_at":         now,
		}).Error
}

func (r *Repository) StoreOTP(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"otp_code":       code,
			"otp_expires_at": expiresAt,
			"updated_at":     time.Now(),
		}).Error
}

func (r *Repository) ClearOTP(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"otp_code":       nil,
			"otp_expires_at": nil,
			"updated_at":     time.Now(),
		}).Error
}

func (r *Repository) GetRoleNames(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Pluck("roles.name", &names).Error
	return names, err
}
