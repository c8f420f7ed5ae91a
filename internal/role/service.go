package role

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	errors "github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/core/common/validation"
	"github.com/frahmantamala/identity-management/internal/core/events"
)

// Service is the single source of truth for which role identifiers exist.
// All other components read the vocabulary through it.
type Service struct {
	repo     Repository
	meta     MetadataStore
	recorder AuditRecorder
	logger   *slog.Logger

	cache *cache
	// mutMu serializes vocabulary mutations: the domain rewrite must be a
	// single mutator at a time even though readers stay concurrent.
	mutMu sync.Mutex
}

func NewService(repo Repository, meta MetadataStore, recorder AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		meta:     meta,
		recorder: recorder,
		logger:   logger,
		cache:    newCache(),
	}
}

// ListRoles returns the canonical ordered vocabulary. A cold cache reloads
// from the persistent domain; if introspection fails the built-in set is
// returned so the request never fails.
func (s *Service) ListRoles(ctx context.Context) []Definition {
	if defs, ok := s.cache.get(); ok {
		return defs
	}
	return s.reload(ctx)
}

// Resolve maps a raw identifier to its definition, case-insensitively.
// It never coerces: anything outside the vocabulary is an error.
func (s *Service) Resolve(ctx context.Context, raw string) (Definition, error) {
	name := Canonical(raw)
	if name == "" {
		return Definition{}, errors.ErrUnknownRole
	}

	if !s.cache.isLoaded() {
		s.reload(ctx)
	}
	if def, ok := s.cache.lookup(name); ok {
		return def, nil
	}
	return Definition{}, errors.ErrUnknownRole
}

// AddRole performs the additive domain extension: new identifier plus
// display metadata, then cache invalidation.
func (s *Service) AddRole(ctx context.Context, actorID *int64, rawName, label, description string) (Definition, error) {
	name := Canonical(rawName)
	if err := validation.ValidateRoleName(name); err != nil {
		return Definition{}, err
	}

	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	existing, err := s.repo.ListDomainValues(ctx)
	if err != nil {
		s.logger.Error("role domain introspection failed", "error", err)
		return Definition{}, errors.NewInternalError("failed to inspect role domain", err)
	}
	for _, known := range existing {
		if strings.EqualFold(known, name) {
			return Definition{}, errors.ErrDuplicateRole
		}
	}

	def, err := s.repo.Insert(ctx, name, false)
	if err != nil {
		s.logger.Error("failed to add role", "role", name, "error", err)
		return Definition{}, errors.NewInternalError("failed to add role", err)
	}

	if label != "" || description != "" {
		if err := s.saveMetadata(name, Metadata{Label: label, Description: description}); err != nil {
			// metadata is display-only; the domain extension already
			// committed, so log and keep going
			s.logger.Error("failed to persist role metadata", "role", name, "error", err)
		} else {
			def.Label = label
			def.Description = description
		}
	}

	s.cache.invalidate()
	s.recorder.Record(ctx, events.AuditRoleAdded, actorID, nil, name)
	s.logger.Info("role added to vocabulary", "role", name)
	return def, nil
}

// RemoveRole narrows the domain. The protected role is untouchable, and a
// role still referenced by any assignment stays. The repository performs the
// delete and the zero-assignments check in one transaction so a failure can
// never leave a partial migration behind.
func (s *Service) RemoveRole(ctx context.Context, actorID *int64, rawName string) error {
	name := Canonical(rawName)
	if name == ProtectedRole {
		return errors.ErrProtectedRole
	}

	s.mutMu.Lock()
	defer s.mutMu.Unlock()

	def, err := s.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if def.Protected {
		return errors.ErrProtectedRole
	}

	if err := s.repo.Remove(ctx, name); err != nil {
		if appErr, ok := errors.IsAppError(err); ok {
			return appErr
		}
		s.logger.Error("failed to remove role", "role", name, "error", err)
		return errors.NewInternalError("failed to remove role", err)
	}

	if err := s.deleteMetadata(name); err != nil {
		s.logger.Error("failed to drop role metadata", "role", name, "error", err)
	}

	s.cache.invalidate()
	s.recorder.Record(ctx, events.AuditRoleRemoved, actorID, nil, name)
	s.logger.Info("role removed from vocabulary", "role", name)
	return nil
}

// Canonical normalizes a raw identifier the single supported way.
func Canonical(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (s *Service) reload(ctx context.Context) []Definition {
	defs, err := s.repo.GetAll(ctx)
	if err != nil {
		// fail open to the built-in vocabulary; do not poison the cache so
		// the next read retries the real domain
		s.logger.Error("role vocabulary reload failed, using built-ins", "error", err)
		builtins := make([]Definition, len(BuiltinRoles))
		copy(builtins, BuiltinRoles)
		return builtins
	}

	meta, err := s.meta.Load()
	if err != nil {
		s.logger.Error("role metadata load failed", "error", err)
		meta = map[string]Metadata{}
	}
	for i := range defs {
		if m, ok := meta[defs[i].Name]; ok {
			defs[i].Label = m.Label
			defs[i].Description = m.Description
		}
	}

	s.cache.set(defs)
	return defs
}

func (s *Service) saveMetadata(name string, m Metadata) error {
	meta, err := s.meta.Load()
	if err != nil {
		return err
	}
	meta[name] = m
	return s.meta.Save(meta)
}

func (s *Service) deleteMetadata(name string) error {
	meta, err := s.meta.Load()
	if err != nil {
		return err
	}
	if _, ok := meta[name]; !ok {
		return nil
	}
	delete(meta, name)
	return s.meta.Save(meta)
}
