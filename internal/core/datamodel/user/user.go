package user

import "time"

// User is the credential and lockout aggregate. The OTP pair and the reset
// token pair are always written and cleared together.
type User struct {
	ID         int64  `gorm:"primaryKey"`
	Username   string `gorm:"column:username;uniqueIndex;not null"`
	Email      string `gorm:"column:email;uniqueIndex;not null"`
	EmployeeID string `gorm:"column:employee_id;uniqueIndex;not null"`
	Mobile     string `gorm:"column:mobile;uniqueIndex;not null"`
	Name       string `gorm:"column:name;not null"`

	PasswordHash      string     `gorm:"column:password_hash;not null"`
	PasswordSetAt     *time.Time `gorm:"column:password_set_at"`
	PasswordExpiresAt *time.Time `gorm:"column:password_expires_at"`

	FailedLoginCount int        `gorm:"column:failed_login_count;not null;default:0"`
	OTPResendCount   int        `gorm:"column:otp_resend_count;not null;default:0"`
	LockedUntil      *time.Time `gorm:"column:locked_until"`

	OTPCode      *string    `gorm:"column:otp_code"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at"`

	ResetTokenHash      *string    `gorm:"column:reset_token_hash"`
	ResetTokenExpiresAt *time.Time `gorm:"column:reset_token_expires_at"`

	IsActive               bool `gorm:"column:is_active;default:true"`
	IsEmailVerified        bool `gorm:"column:is_email_verified;default:false"`
	IsAdminVerified        bool `gorm:"column:is_admin_verified;default:false"`
	RequiresPasswordChange bool `gorm:"column:requires_password_change;default:false"`

	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// Role is one value of the role vocabulary. Roles live in a plain lookup
// table rather than a database enum so adding a role is a row insert and
// removing one is a referential-integrity-checked delete. Display metadata
// (label, description) lives in the role metadata file store.
type Role struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	Protected bool      `gorm:"column:protected;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// UserRole links users to roles. (user_id, role_id) is composite-unique.
type UserRole struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_role"`
	RoleID    int64     `gorm:"column:role_id;not null;uniqueIndex:idx_user_role"`
	GrantedBy *int64    `gorm:"column:granted_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// AuditLog records every state-changing operation in the security core.
type AuditLog struct {
	ID        int64     `gorm:"primaryKey"`
	EventID   string    `gorm:"column:event_id;not null"`
	EventName string    `gorm:"column:event_name;not null"`
	ActorID   *int64    `gorm:"column:actor_id"`
	SubjectID *int64    `gorm:"column:subject_id"`
	Detail    string    `gorm:"column:detail"`
	CreatedAt time.Time `gorm:"column:created_at"`
}
