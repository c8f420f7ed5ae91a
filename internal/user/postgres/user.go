package postgres

import (
	"context"
	"strings"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) user.Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, u *userDatamodel.User) error {
	err := r.db.WithContext(ctx).Create(u).Error
	if err != nil && isUniqueViolation(err) {
		return errors.ErrDuplicateUser
	}
	return err
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]userDatamodel.User, error) {
	var users []userDatamodel.User
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

func (r *Repository) UpdateCredential(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"password_hash":            u.PasswordHash,
			"password_set_at":          u.PasswordSetAt,
			"password_expires_at":      u.PasswordExpiresAt,
			"requires_password_change": u.RequiresPasswordChange,
			"updated_at":               time.Now(),
		}).Error
}

func (r *Repository) ApplyUnlock(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"locked_until":             nil,
			"failed_login_count":       0,
			"otp_resend_count":         0,
			"password_hash":            u.PasswordHash,
			"password_set_at":          u.PasswordSetAt,
			"password_expires_at":      u.PasswordExpiresAt,
			"requires_password_change": true,
			"updated_at":               time.Now(),
		}).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
