package postgres

import (
	"context"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/role"
	"gorm.io/gorm"
)

// Repository implements the role.Repository domain operations using a
// tagged lookup table instead of a native enum, so add is an insert and
// remove is a referential-integrity-checked delete.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) role.Repository {
	return &Repository{db: db}
}

func (r *Repository) ListDomainValues(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("roles").
		Order("name ASC").
		Pluck("name", &names).Error
	return names, err
}

func (r *Repository) GetAll(ctx context.Context) ([]role.Definition, error) {
	var rows []userDatamodel.Role
	if err := r.db.WithContext(ctx).Table("roles").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	defs := make([]role.Definition, 0, len(rows))
	for _, row := range rows {
		defs = append(defs, role.Definition{
			ID:        row.ID,
			Name:      row.Name,
			Protected: row.Protected,
			CreatedAt: row.CreatedAt,
		})
	}
	return defs, nil
}

func (r *Repository) Insert(ctx context.Context, name string, protected bool) (role.Definition, error) {
	row := userDatamodel.Role{
		Name:      name,
		Protected: protected,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Table("roles").Create(&row).Error; err != nil {
		return role.Definition{}, err
	}
	return role.Definition{
		ID:        row.ID,
		Name:      row.Name,
		Protected: row.Protected,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Remove deletes the role only if no assignment references it. The count and
// the delete run in one transaction so a concurrent assignment cannot slip
// between the check and the removal.
func (r *Repository) Remove(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userDatamodel.Role
		if err := tx.Table("roles").Where("name = ?", name).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrUnknownRole
			}
			return err
		}

		var count int64
		if err := tx.Table("user_roles").Where("role_id = ?", row.ID).Count(&count).Error; err != nil {
			return err
		}
		if count != 0 {
			return errors.ErrRoleInUse
		}

		return tx.Table("roles").Where("id = ?", row.ID).Delete(&userDatamodel.Role{}).Error
	})
}

func (r *Repository) CountAssignments(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("roles.name = ?", name).
		Count(&count).Error
	return count, err
}
