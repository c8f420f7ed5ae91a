package user

import (
	errors "github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/core/common/validation"
)

type CreateUserDTO struct {
	Username   string   `json:"username"`
	Email      string   `json:"email"`
	EmployeeID string   `json:"employee_id"`
	Mobile     string   `json:"mobile"`
	Name       string   `json:"name"`
	// Password is optional; a temporary one is generated and delivered
	// out-of-band when omitted.
	Password string   `json:"password,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

func (d CreateUserDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("username", d.Username).Required().MinLength(3).MaxLength(50)
	v.Field("employee_id", d.EmployeeID).Required().MaxLength(50)
	v.Field("name", d.Name).Required().MaxLength(100)
	if err := v.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateEmail(d.Email); err != nil {
		return err
	}
	return validation.ValidateMobile(d.Mobile)
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (d ChangePasswordDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("old_password", d.OldPassword).Required()
	v.Field("new_password", d.NewPassword).Required()
	return v.Validate()
}
