package role

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestRole(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Role Module Suite")
}

// memoryRoleRepo is an in-memory role domain with per-role assignment counts.
type memoryRoleRepo struct {
	mu          sync.Mutex
	defs        []Definition
	assignments map[string]int64
	nextID      int64
	listErr     error
	getAllErr   error
}

func newMemoryRoleRepo() *memoryRoleRepo {
	r := &memoryRoleRepo{assignments: make(map[string]int64), nextID: 1}
	for _, b := range BuiltinRoles {
		r.defs = append(r.defs, Definition{ID: r.nextID, Name: b.Name, Protected: b.Protected, CreatedAt: time.Now()})
		r.nextID++
	}
	return r
}

func (r *memoryRoleRepo) ListDomainValues(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names, nil
}

func (r *memoryRoleRepo) GetAll(_ context.Context) ([]Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getAllErr != nil {
		return nil, r.getAllErr
	}
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out, nil
}

func (r *memoryRoleRepo) Insert(_ context.Context, name string, protected bool) (Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def := Definition{ID: r.nextID, Name: name, Protected: protected, CreatedAt: time.Now()}
	r.nextID++
	r.defs = append(r.defs, def)
	return def, nil
}

func (r *memoryRoleRepo) Remove(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignments[name] > 0 {
		return errors.ErrRoleInUse
	}
	for i, d := range r.defs {
		if d.Name == name {
			r.defs = append(r.defs[:i], r.defs[i+1:]...)
			return nil
		}
	}
	return errors.ErrUnknownRole
}

func (r *memoryRoleRepo) CountAssignments(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assignments[name], nil
}

type mockRecorder struct {
	mu    sync.Mutex
	names []string
}

func (m *mockRecorder) Record(_ context.Context, name string, _, _ *int64, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
}

func (m *mockRecorder) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, got := range m.names {
		if got == name {
			n++
		}
	}
	return n
}

var _ = ginkgo.Describe("Role Service", func() {
	var (
		repo     *memoryRoleRepo
		meta     *FileMetadataStore
		recorder *mockRecorder
		service  *Service
	)

	ginkgo.BeforeEach(func() {
		repo = newMemoryRoleRepo()
		meta = NewFileMetadataStore(filepath.Join(ginkgo.GinkgoT().TempDir(), "role_metadata.json"))
		recorder = &mockRecorder{}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		service = NewService(repo, meta, recorder, logger)
	})

	ginkgo.Describe("ListRoles", func() {
		ginkgo.It("should return the persistent vocabulary", func() {
			defs := service.ListRoles(context.Background())

			names := make([]string, len(defs))
			for i, d := range defs {
				names[i] = d.Name
			}
			gomega.Expect(names).To(gomega.ContainElements("superadmin", "admin", "staff", "member"))
		})

		ginkgo.It("should fail open to the built-in vocabulary when introspection breaks", func() {
			repo.getAllErr = context.DeadlineExceeded

			defs := service.ListRoles(context.Background())

			gomega.Expect(defs).To(gomega.HaveLen(len(BuiltinRoles)))
		})

		ginkgo.It("should not poison the cache with the fail-open answer", func() {
			repo.getAllErr = context.DeadlineExceeded
			service.ListRoles(context.Background())

			repo.getAllErr = nil
			_, err := repo.Insert(context.Background(), "auditor", false)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			defs := service.ListRoles(context.Background())
			names := make([]string, len(defs))
			for i, d := range defs {
				names[i] = d.Name
			}
			gomega.Expect(names).To(gomega.ContainElement("auditor"))
		})

		ginkgo.It("should decorate definitions with stored metadata", func() {
			gomega.Expect(meta.Save(map[string]Metadata{
				"staff": {Label: "Staff", Description: "Internal staff"},
			})).To(gomega.Succeed())

			defs := service.ListRoles(context.Background())

			var staff Definition
			for _, d := range defs {
				if d.Name == "staff" {
					staff = d
				}
			}
			gomega.Expect(staff.Label).To(gomega.Equal("Staff"))
			gomega.Expect(staff.Description).To(gomega.Equal("Internal staff"))
		})
	})

	ginkgo.Describe("Resolve", func() {
		ginkgo.It("should resolve case-insensitively with surrounding whitespace", func() {
			def, err := service.Resolve(context.Background(), "  ADMIN ")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(def.Name).To(gomega.Equal("admin"))
		})

		ginkgo.It("should never coerce identifiers outside the vocabulary", func() {
			_, err := service.Resolve(context.Background(), "warlord")

			gomega.Expect(err).To(gomega.Equal(errors.ErrUnknownRole))
		})

		ginkgo.It("should reject the empty identifier", func() {
			_, err := service.Resolve(context.Background(), "   ")

			gomega.Expect(err).To(gomega.Equal(errors.ErrUnknownRole))
		})
	})

	ginkgo.Describe("AddRole", func() {
		ginkgo.It("should extend the vocabulary and invalidate the cache", func() {
			service.ListRoles(context.Background())

			def, err := service.AddRole(context.Background(), nil, "Auditor", "Auditor", "Read-only reviewer")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(def.Name).To(gomega.Equal("auditor"))
			gomega.Expect(def.Label).To(gomega.Equal("Auditor"))

			resolved, err := service.Resolve(context.Background(), "auditor")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(resolved.Description).To(gomega.Equal("Read-only reviewer"))
			gomega.Expect(recorder.count(events.AuditRoleAdded)).To(gomega.Equal(1))
		})

		ginkgo.It("should refuse duplicates case-insensitively", func() {
			_, err := service.AddRole(context.Background(), nil, "ADMIN", "", "")

			gomega.Expect(err).To(gomega.Equal(errors.ErrDuplicateRole))
		})

		ginkgo.It("should refuse malformed identifiers", func() {
			_, err := service.AddRole(context.Background(), nil, "not a role!", "", "")

			gomega.Expect(err).To(gomega.HaveOccurred())

			_, err = service.AddRole(context.Background(), nil, "x", "", "")
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should surface introspection failures instead of guessing", func() {
			repo.listErr = context.DeadlineExceeded

			_, err := service.AddRole(context.Background(), nil, "auditor", "", "")

			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("RemoveRole", func() {
		ginkgo.It("should remove an unreferenced role and invalidate the cache", func() {
			_, err := service.AddRole(context.Background(), nil, "auditor", "Auditor", "")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(service.RemoveRole(context.Background(), nil, "auditor")).To(gomega.Succeed())

			_, err = service.Resolve(context.Background(), "auditor")
			gomega.Expect(err).To(gomega.Equal(errors.ErrUnknownRole))
			gomega.Expect(recorder.count(events.AuditRoleRemoved)).To(gomega.Equal(1))

			stored, err := meta.Load()
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(stored).ToNot(gomega.HaveKey("auditor"))
		})

		ginkgo.It("should never remove the protected role", func() {
			err := service.RemoveRole(context.Background(), nil, "SUPERADMIN")

			gomega.Expect(err).To(gomega.Equal(errors.ErrProtectedRole))
		})

		ginkgo.It("should refuse while assignments still reference the role", func() {
			repo.assignments["staff"] = 3

			err := service.RemoveRole(context.Background(), nil, "staff")

			gomega.Expect(err).To(gomega.Equal(errors.ErrRoleInUse))

			_, resolveErr := service.Resolve(context.Background(), "staff")
			gomega.Expect(resolveErr).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should refuse unknown roles", func() {
			err := service.RemoveRole(context.Background(), nil, "ghost")

			gomega.Expect(err).To(gomega.Equal(errors.ErrUnknownRole))
		})
	})
})

var _ = ginkgo.Describe("FileMetadataStore", func() {
	var store *FileMetadataStore

	ginkgo.BeforeEach(func() {
		store = NewFileMetadataStore(filepath.Join(ginkgo.GinkgoT().TempDir(), "nested", "role_metadata.json"))
	})

	ginkgo.It("should treat a missing file as an empty map", func() {
		meta, err := store.Load()

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(meta).To(gomega.BeEmpty())
	})

	ginkgo.It("should round-trip the metadata map", func() {
		in := map[string]Metadata{
			"auditor": {Label: "Auditor", Description: "Read-only reviewer"},
			"staff":   {Label: "Staff"},
		}
		gomega.Expect(store.Save(in)).To(gomega.Succeed())

		out, err := store.Load()

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out).To(gomega.Equal(in))
	})

	ginkgo.It("should replace the document on save, not merge", func() {
		gomega.Expect(store.Save(map[string]Metadata{"a": {Label: "A"}})).To(gomega.Succeed())
		gomega.Expect(store.Save(map[string]Metadata{"b": {Label: "B"}})).To(gomega.Succeed())

		out, err := store.Load()

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(out).To(gomega.HaveKey("b"))
		gomega.Expect(out).ToNot(gomega.HaveKey("a"))
	})
})
