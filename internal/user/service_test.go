package user

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-management/internal/core/events"
	"github.com/frahmantamala/identity-management/internal/credential"
	"github.com/frahmantamala/identity-management/internal/lockout"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestUser(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "User Module Suite")
}

// memoryUserRepo enforces identifier uniqueness the way the storage layer
// does and surfaces collisions as ErrDuplicateUser.
type memoryUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*userDatamodel.User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]*userDatamodel.User), nextID: 1}
}

func (r *memoryUserRepo) snapshot(id int64) *userDatamodel.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.users[id]
	return &cp
}

func (r *memoryUserRepo) Create(_ context.Context, u *userDatamodel.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email ||
			existing.EmployeeID == u.EmployeeID || existing.Mobile == u.Mobile {
			return errors.ErrDuplicateUser
		}
	}
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id int64) (*userDatamodel.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepo) List(_ context.Context, limit, offset int) ([]userDatamodel.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []userDatamodel.User
	for id := int64(1); id < r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryUserRepo) UpdateCredential(_ context.Context, u *userDatamodel.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return errors.ErrUserNotFound
	}
	stored.PasswordHash = u.PasswordHash
	stored.PasswordSetAt = u.PasswordSetAt
	stored.PasswordExpiresAt = u.PasswordExpiresAt
	stored.RequiresPasswordChange = u.RequiresPasswordChange
	return nil
}

func (r *memoryUserRepo) ApplyUnlock(_ context.Context, u *userDatamodel.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return errors.ErrUserNotFound
	}
	stored.LockedUntil = nil
	stored.FailedLoginCount = 0
	stored.OTPResendCount = 0
	stored.PasswordHash = u.PasswordHash
	stored.PasswordSetAt = u.PasswordSetAt
	stored.PasswordExpiresAt = u.PasswordExpiresAt
	stored.RequiresPasswordChange = true
	return nil
}

type mockAssigner struct {
	mu        sync.Mutex
	granted   []string
	assignErr error
}

func (m *mockAssigner) Assign(_ context.Context, _ *int64, _ int64, rawRole string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignErr != nil {
		return m.assignErr
	}
	m.granted = append(m.granted, rawRole)
	return nil
}

type mockNotifier struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (m *mockNotifier) Send(_ context.Context, _, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, message)
	return nil
}

func (m *mockNotifier) lastMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
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

var _ = ginkgo.Describe("User Service", func() {
	var (
		repo     *memoryUserRepo
		assigner *mockAssigner
		notifier *mockNotifier
		recorder *mockRecorder
		creds    *credential.Store
		service  *Service
		now      time.Time
		actor    int64
	)

	validDTO := func() CreateUserDTO {
		return CreateUserDTO{
			Username:   "jdoe",
			Email:      "jdoe@example.com",
			EmployeeID: "EMP-0001",
			Mobile:     "+15550000001",
			Name:       "J. Doe",
		}
	}

	ginkgo.BeforeEach(func() {
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		repo = newMemoryUserRepo()
		assigner = &mockAssigner{}
		notifier = &mockNotifier{}
		recorder = &mockRecorder{}
		actor = 99
		creds = credential.NewStore(bcrypt.MinCost, 90*24*time.Hour).WithClock(func() time.Time { return now })

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		policy := lockout.NewPolicy(lockout.DefaultThreshold, lockout.DefaultOTPThreshold, lockout.DefaultLockDuration)
		service = NewService(repo, creds, policy, assigner, notifier, recorder, logger).
			WithClock(func() time.Time { return now })
	})

	ginkgo.Describe("Create", func() {
		ginkgo.It("should create the account with a forced password change", func() {
			dto := validDTO()
			dto.Password = "Chosen1Password!"

			profile, err := service.Create(context.Background(), &actor, dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(profile.ID).ToNot(gomega.BeZero())

			stored := repo.snapshot(profile.ID)
			gomega.Expect(stored.RequiresPasswordChange).To(gomega.BeTrue())
			gomega.Expect(creds.CheckPassword(stored, "Chosen1Password!")).To(gomega.BeTrue())
			gomega.Expect(notifier.sent).To(gomega.BeEmpty())
			gomega.Expect(recorder.count(events.AuditUserCreated)).To(gomega.Equal(1))
		})

		ginkgo.It("should generate and deliver a temporary password when none is supplied", func() {
			profile, err := service.Create(context.Background(), &actor, validDTO())

			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			msg := notifier.lastMessage()
			gomega.Expect(msg).To(gomega.HavePrefix("Your temporary password is "))
			tmp := strings.TrimPrefix(msg, "Your temporary password is ")
			gomega.Expect(creds.CheckPassword(repo.snapshot(profile.ID), tmp)).To(gomega.BeTrue())
		})

		ginkgo.It("should grant the initial roles", func() {
			dto := validDTO()
			dto.Roles = []string{"staff", "member"}

			_, err := service.Create(context.Background(), &actor, dto)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(assigner.granted).To(gomega.Equal([]string{"staff", "member"}))
		})

		ginkgo.It("should surface an initial role failure without undoing the account", func() {
			assigner.assignErr = errors.ErrUnknownRole
			dto := validDTO()
			dto.Roles = []string{"warlord"}

			_, err := service.Create(context.Background(), &actor, dto)

			gomega.Expect(err).To(gomega.Equal(errors.ErrUnknownRole))
			gomega.Expect(repo.users).To(gomega.HaveLen(1))
		})

		ginkgo.It("should refuse identifier collisions", func() {
			_, err := service.Create(context.Background(), &actor, validDTO())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.Create(context.Background(), &actor, validDTO())

			gomega.Expect(err).To(gomega.Equal(errors.ErrDuplicateUser))
		})

		ginkgo.It("should refuse a supplied password that violates the policy", func() {
			dto := validDTO()
			dto.Password = "weak"

			_, err := service.Create(context.Background(), &actor, dto)

			gomega.Expect(err).To(gomega.Equal(credential.ErrWeakPassword))
			gomega.Expect(repo.users).To(gomega.BeEmpty())
		})

		ginkgo.It("should refuse malformed input", func() {
			dto := validDTO()
			dto.Email = "not-an-email"

			_, err := service.Create(context.Background(), &actor, dto)

			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("List", func() {
		ginkgo.BeforeEach(func() {
			for _, n := range []string{"1", "2", "3"} {
				dto := validDTO()
				dto.Username = "user-" + n
				dto.Email = n + "@example.com"
				dto.EmployeeID = "EMP-" + n
				dto.Mobile = "+1555000000" + n
				_, err := service.Create(context.Background(), &actor, dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			}
		})

		ginkgo.It("should page through profiles", func() {
			page, err := service.List(context.Background(), 2, 0)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(page).To(gomega.HaveLen(2))

			rest, err := service.List(context.Background(), 2, 2)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rest).To(gomega.HaveLen(1))
		})

		ginkgo.It("should never expose credential fields on profiles", func() {
			page, err := service.List(context.Background(), 10, 0)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			for _, p := range page {
				gomega.Expect(p.Username).ToNot(gomega.BeEmpty())
			}
		})
	})

	ginkgo.Describe("ManualUnlock", func() {
		var userID int64

		ginkgo.BeforeEach(func() {
			profile, err := service.Create(context.Background(), &actor, validDTO())
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			userID = profile.ID

			until := now.Add(time.Hour)
			repo.users[userID].LockedUntil = &until
			repo.users[userID].FailedLoginCount = lockout.DefaultThreshold
			repo.users[userID].OTPResendCount = 2
		})

		ginkgo.It("should clear the lock and issue a fresh temporary password", func() {
			err := service.ManualUnlock(context.Background(), &actor, userID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			stored := repo.snapshot(userID)
			gomega.Expect(stored.LockedUntil).To(gomega.BeNil())
			gomega.Expect(stored.FailedLoginCount).To(gomega.Equal(0))
			gomega.Expect(stored.OTPResendCount).To(gomega.Equal(0))
			gomega.Expect(stored.RequiresPasswordChange).To(gomega.BeTrue())

			msg := notifier.lastMessage()
			gomega.Expect(msg).To(gomega.ContainSubstring("Temporary password: "))
			tmp := msg[strings.Index(msg, ": ")+2:]
			gomega.Expect(creds.CheckPassword(stored, tmp)).To(gomega.BeTrue())
			gomega.Expect(recorder.count(events.AuditAccountUnlocked)).To(gomega.Equal(1))
		})

		ginkgo.It("should keep the unlock when delivery fails", func() {
			notifier.sendErr = context.DeadlineExceeded

			err := service.ManualUnlock(context.Background(), &actor, userID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.snapshot(userID).LockedUntil).To(gomega.BeNil())
		})

		ginkgo.It("should refuse unknown users", func() {
			err := service.ManualUnlock(context.Background(), &actor, 999)

			gomega.Expect(err).To(gomega.Equal(errors.ErrUserNotFound))
		})
	})

	ginkgo.Describe("ChangePassword", func() {
		var userID int64

		ginkgo.BeforeEach(func() {
			dto := validDTO()
			dto.Password = "Old1Password!"
			profile, err := service.Create(context.Background(), &actor, dto)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			userID = profile.ID
		})

		ginkgo.It("should change the password and drop the forced-change flag", func() {
			err := service.ChangePassword(context.Background(), userID, ChangePasswordDTO{
				OldPassword: "Old1Password!",
				NewPassword: "Brand1NewPassword",
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			stored := repo.snapshot(userID)
			gomega.Expect(stored.RequiresPasswordChange).To(gomega.BeFalse())
			gomega.Expect(creds.CheckPassword(stored, "Brand1NewPassword")).To(gomega.BeTrue())
			gomega.Expect(creds.CheckPassword(stored, "Old1Password!")).To(gomega.BeFalse())
			gomega.Expect(recorder.count(events.AuditPasswordChanged)).To(gomega.Equal(1))
		})

		ginkgo.It("should demand the old password", func() {
			err := service.ChangePassword(context.Background(), userID, ChangePasswordDTO{
				OldPassword: "Wrong1Password",
				NewPassword: "Brand1NewPassword",
			})

			gomega.Expect(err).To(gomega.Equal(errors.ErrInvalidCredentials))
		})

		ginkgo.It("should refuse a weak new password", func() {
			err := service.ChangePassword(context.Background(), userID, ChangePasswordDTO{
				OldPassword: "Old1Password!",
				NewPassword: "weak",
			})

			gomega.Expect(err).To(gomega.Equal(credential.ErrWeakPassword))
			gomega.Expect(creds.CheckPassword(repo.snapshot(userID), "Old1Password!")).To(gomega.BeTrue())
		})
	})
})
