package postgres

import (
	"context"
	"strings"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/userrole"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) userrole.Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByUser(ctx context.Context, userID int64) ([]userrole.Assignment, error) {
	var assignments []userrole.Assignment
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Select("user_roles.id, user_roles.user_id, user_roles.role_id, roles.name AS role_name, user_roles.granted_by, user_roles.created_at").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Scan(&assignments).Error
	return assignments, err
}

func (r *Repository) Insert(ctx context.Context, userID, roleID int64, grantedBy *int64) error {
	row := userDatamodel.UserRole{
		UserID:    userID,
		RoleID:    roleID,
		GrantedBy: grantedBy,
		CreatedAt: time.Now(),
	}
	err := r.db.WithContext(ctx).Table("user_roles").Create(&row).Error
	if err != nil && isUniqueViolation(err) {
		return errors.ErrDuplicateAssignment
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Table("user_roles").
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&userDatamodel.UserRole{}).Error
}

func (r *Repository) Replace(ctx context.Context, userID int64, addRoleIDs, removeRoleIDs []int64, grantedBy *int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(removeRoleIDs) > 0 {
			if err := tx.Table("user_roles").
				Where("user_id = ? AND role_id IN ?", userID, removeRoleIDs).
				Delete(&userDatamodel.UserRole{}).Error; err != nil {
				return err
			}
		}
		for _, roleID := range addRoleIDs {
			row := userDatamodel.UserRole{
				UserID:    userID,
				RoleID:    roleID,
				GrantedBy: grantedBy,
				CreatedAt: time.Now(),
			}
			if err := tx.Table("user_roles").Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) CountAdminTier(ctx context.Context, roleNames []string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("roles.name IN ?", roleNames).
		Count(&count).Error
	return count, err
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
