package user

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/frahmantamala/identity-management/internal/credential"
	"github.com/frahmantamala/identity-management/internal/lockout"
)

type Service struct {
	repo     Repository
	creds    *credential.Store
	policy   lockout.Policy
	roles    RoleAssigner
	notifier Notifier
	recorder AuditRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	repo Repository,
	creds *credential.Store,
	policy lockout.Policy,
	roles RoleAssigner,
	notifier Notifier,
	recorder AuditRecorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		creds:    creds,
		policy:   policy,
		roles:    roles,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create registers a new account. New accounts always start with a forced
// password change, whether the password was supplied or generated. Initial
// role assignment failures after the insert are reported, not rolled back:
// the account exists and roles can be granted again.
func (s *Service) Create(ctx context.Context, actorID *int64, dto CreateUserDTO) (*Profile, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	password := dto.Password
	generated := false
	if password == "" {
		tmp, err := credential.GenerateTempPassword()
		if err != nil {
			return nil, errors.NewInternalError("failed to generate temporary password", err)
		}
		password = tmp
		generated = true
	}

	u := &userDatamodel.User{
		Username:   dto.Username,
		Email:      dto.Email,
		EmployeeID: dto.EmployeeID,
		Mobile:     dto.Mobile,
		Name:       dto.Name,
		IsActive:   true,
	}
	if err := s.creds.SetPassword(u, password); err != nil {
		return nil, err
	}
	u.RequiresPasswordChange = true

	if err := s.repo.Create(ctx, u); err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}
		s.logger.Error("failed to create user", "error", err)
		return nil, errors.NewInternalError("failed to create user", err)
	}

	for _, r := range dto.Roles {
		if err := s.roles.Assign(ctx, actorID, u.ID, r); err != nil {
			s.logger.Error("initial role assignment failed", "user_id", u.ID, "role", r, "error", err)
			return nil, err
		}
	}

	if generated {
		if err := s.notifier.Send(ctx, u.Email, "Your temporary password is "+password); err != nil {
			s.logger.Error("temporary password delivery failed", "user_id", u.ID, "error", err)
		}
	}

	s.recorder.Record(ctx, events.AuditUserCreated, actorID, &u.ID, u.Username)
	s.logger.Info("user created", "user_id", u.ID)
	return s.profile(ctx, u), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, errors.NewInternalError("failed to load user", err)
	}
	return s.profile(ctx, u), nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, errors.NewInternalError("failed to list users", err)
	}

	profiles := make([]Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, *s.profile(ctx, &users[i]))
	}
	return profiles, nil
}

// ManualUnlock is the administrative override for a locked account: the lock
// is cleared, the counters are zeroed and a fresh temporary password is
// issued with a forced change on next login. Delivery failures do not undo
// the unlock.
func (s *Service) ManualUnlock(ctx context.Context, actorID *int64, userID int64) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return appErr
		}
		return errors.NewInternalError("failed to load user", err)
	}

	tmp, err := credential.GenerateTempPassword()
	if err != nil {
		return errors.NewInternalError("failed to generate temporary password", err)
	}

	s.policy.ManualUnlock(u)
	if err := s.creds.SetPassword(u, tmp); err != nil {
		return err
	}

	if err := s.repo.ApplyUnlock(ctx, u); err != nil {
		s.logger.Error("failed to persist unlock", "user_id", userID, "error", err)
		return errors.NewInternalError("failed to unlock user", err)
	}

	if err := s.notifier.Send(ctx, u.Email, "Your account was unlocked. Temporary password: "+tmp); err != nil {
		s.logger.Error("temporary password delivery failed", "user_id", userID, "error", err)
	}

	s.recorder.Record(ctx, events.AuditAccountUnlocked, actorID, &userID, "manual unlock")
	s.logger.Info("account unlocked", "user_id", userID)
	return nil
}

// ChangePassword is the authenticated self-service path. It works while the
// account carries the forced-change flag or an expired password; that is
// exactly when it is needed. The old password must still verify.
func (s *Service) ChangePassword(ctx context.Context, userID int64, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return appErr
		}
		return errors.NewInternalError("failed to load user", err)
	}

	if !s.creds.CheckPassword(u, dto.OldPassword) {
		return errors.ErrInvalidCredentials
	}

	if err := s.creds.SetPassword(u, dto.NewPassword); err != nil {
		return err
	}
	u.RequiresPasswordChange = false

	if err := s.repo.UpdateCredential(ctx, u); err != nil {
		s.logger.Error("failed to persist password change", "user_id", userID, "error", err)
		return errors.NewInternalError("failed to change password", err)
	}

	s.recorder.Record(ctx, events.AuditPasswordChanged, &userID, &userID, "self-service change")
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

func (s *Service) profile(ctx context.Context, u *userDatamodel.User) *Profile {
	return &Profile{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		EmployeeID:      u.EmployeeID,
		Mobile:          u.Mobile,
		Name:            u.Name,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		IsAdminVerified: u.IsAdminVerified,
		Locked:          lockout.IsLocked(u, s.now()),
	}
}
