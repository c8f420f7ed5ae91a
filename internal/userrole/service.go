package userrole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/frahmantamala/identity-management/internal/role"
)

type Service struct {
	repo     Repository
	vocab    Vocabulary
	recorder AuditRecorder
	logger   *slog.Logger
}

func NewService(repo Repository, vocab Vocabulary, recorder AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		vocab:    vocab,
		recorder: recorder,
		logger:   logger,
	}
}

func (s *Service) GetUserRoles(ctx context.Context, userID int64) ([]Assignment, error) {
	assignments, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load user roles", "user_id", userID, "error", err)
		return nil, errors.NewInternalError("failed to load user roles", err)
	}
	return assignments, nil
}

// Assign grants one role. The identifier is validated against the vocabulary
// first; an assignment the user already holds is a conflict callers may
// treat as success.
func (s *Service) Assign(ctx context.Context, actorID *int64, userID int64, rawRole string) error {
	def, err := s.vocab.Resolve(ctx, rawRole)
	if err != nil {
		return err
	}

	if err := s.repo.Insert(ctx, userID, def.ID, actorID); err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return appErr
		}
		s.logger.Error("failed to assign role", "user_id", userID, "role", def.Name, "error", err)
		return errors.NewInternalError("failed to assign role", err)
	}

	s.recorder.Record(ctx, events.AuditRoleAssigned, actorID, &userID, def.Name)
	s.logger.Info("role assigned", "user_id", userID, "role", def.Name)
	return nil
}

// SetRoles reconciles the user's assignments to exactly the desired set.
// The symmetric difference is applied in one transaction and reported back
// for audit logging.
func (s *Service) SetRoles(ctx context.Context, actorID *int64, userID int64, desired []string) (ChangeSet, error) {
	desiredDefs := make(map[string]role.Definition, len(desired))
	for _, raw := range desired {
		def, err := s.vocab.Resolve(ctx, raw)
		if err != nil {
			return ChangeSet{}, err
		}
		desiredDefs[def.Name] = def
	}

	current, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load current roles", "user_id", userID, "error", err)
		return ChangeSet{}, errors.NewInternalError("failed to load current roles", err)
	}
	currentByName := make(map[string]Assignment, len(current))
	for _, a := range current {
		currentByName[a.RoleName] = a
	}

	var changes ChangeSet
	var addIDs, removeIDs []int64
	for name, def := range desiredDefs {
		if _, held := currentByName[name]; !held {
			addIDs = append(addIDs, def.ID)
			changes.Added = append(changes.Added, name)
		}
	}
	for name, a := range currentByName {
		if _, wanted := desiredDefs[name]; !wanted {
			removeIDs = append(removeIDs, a.RoleID)
			changes.Removed = append(changes.Removed, name)
		}
	}

	if len(addIDs) == 0 && len(removeIDs) == 0 {
		return changes, nil
	}

	if err := s.repo.Replace(ctx, userID, addIDs, removeIDs, actorID); err != nil {
		s.logger.Error("failed to replace roles", "user_id", userID, "error", err)
		return ChangeSet{}, errors.NewInternalError("failed to replace roles", err)
	}

	detail := fmt.Sprintf("added=[%s] removed=[%s]",
		strings.Join(changes.Added, ","), strings.Join(changes.Removed, ","))
	s.recorder.Record(ctx, events.AuditRoleAssigned, actorID, &userID, detail)
	s.logger.Info("roles replaced", "user_id", userID, "added", changes.Added, "removed", changes.Removed)
	return changes, nil
}

// Revoke removes one role from one user. Revoking the last admin-tier
// assignment in the whole system is refused: some account must always be
// able to administer it. The check scans every user's assignments, not just
// the target's.
func (s *Service) Revoke(ctx context.Context, actorID *int64, userID int64, rawRole string) error {
	def, err := s.vocab.Resolve(ctx, rawRole)
	if err != nil {
		return err
	}

	current, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load current roles", "user_id", userID, "error", err)
		return errors.NewInternalError("failed to load current roles", err)
	}
	held := false
	for _, a := range current {
		if a.RoleName == def.Name {
			held = true
			break
		}
	}
	if !held {
		// the role itself resolved; the assignment is what is missing
		return errors.ErrRoleNotHeld
	}

	if role.AdminTierRoles[def.Name] {
		total, err := s.repo.CountAdminTier(ctx, adminTierNames())
		if err != nil {
			s.logger.Error("failed to count admin-tier assignments", "error", err)
			return errors.NewInternalError("failed to count admin-tier assignments", err)
		}
		if total <= 1 {
			return errors.ErrLastAdmin
		}
	}

	if err := s.repo.Delete(ctx, userID, def.ID); err != nil {
		s.logger.Error("failed to revoke role", "user_id", userID, "role", def.Name, "error", err)
		return errors.NewInternalError("failed to revoke role", err)
	}

	s.recorder.Record(ctx, events.AuditRoleRevoked, actorID, &userID, def.Name)
	s.logger.Info("role revoked", "user_id", userID, "role", def.Name)
	return nil
}

func adminTierNames() []string {
	names := make([]string, 0, len(role.AdminTierRoles))
	for name := range role.AdminTierRoles {
		names = append(names, name)
	}
	return names
}
