package postgres

import (
	"context"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/passwordreset"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) passwordreset.Repository {
	return &Repository{db: db}
}

func (r *Repository) FindActiveByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", email, true).
		First(&u).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *Repository) StoreResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"reset_token_hash":       tokenHash,
			"reset_token_expires_at": expiresAt,
			"updated_at":             time.Now(),
		}).Error
}

// ConsumeResetToken writes the new credential and clears the token pair in a
// single statement guarded by the stored hash. Zero rows affected means the
// token was already consumed or replaced, so the redemption loses.
func (r *Repository) ConsumeResetToken(ctx context.Context, u *userDatamodel.User, tokenHash string) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND reset_token_hash = ?", u.ID, tokenHash).
		Updates(map[string]interface{}{
			"password_hash":            u.PasswordHash,
			"password_set_at":          u.PasswordSetAt,
			"password_expires_at":      u.PasswordExpiresAt,
			"requires_password_change": false,
			"reset_token_hash":         nil,
			"reset_token_expires_at":   nil,
			"updated_at":               time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.ErrInvalidResetToken
	}
	return nil
}
