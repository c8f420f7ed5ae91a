package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	errors "github.com/frahmantamala/identity-management/internal"
	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MinCharacterClasses is how many of {lower, upper, digit, symbol} a
	// candidate password must contain.
	MinCharacterClasses = 3
)

var ErrWeakPassword = errors.NewValidationError(
	fmt.Sprintf("password must be at least %d characters and contain %d of: lowercase, uppercase, digits, symbols", MinPasswordLength, MinCharacterClasses),
	errors.ErrCodeWeakPassword,
)

// CheckPolicy is the pure complexity check. It never sees stored state.
func CheckPolicy(candidate string) error {
	if len(candidate) < MinPasswordLength {
		return ErrWeakPassword
	}

	var lower, upper, digit, symbol bool
	for _, r := range candidate {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	classes := 0
	for _, present := range []bool{lower, upper, digit, symbol} {
		if present {
			classes++
		}
	}
	if classes < MinCharacterClasses {
		return ErrWeakPassword
	}
	return nil
}

// Store owns the password lifecycle on the user aggregate: hashing, expiry
// and verification. Plaintext passwords are never persisted or logged.
type Store struct {
	bcryptCost     int
	passwordMaxAge time.Duration
	now            func() time.Time
}

func NewStore(bcryptCost int, passwordMaxAge time.Duration) *Store {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if passwordMaxAge <= 0 {
		passwordMaxAge = 90 * 24 * time.Hour
	}
	return &Store{
		bcryptCost:     bcryptCost,
		passwordMaxAge: passwordMaxAge,
		now:            time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// SetPassword validates the candidate against the complexity policy, hashes
// it with a fresh salt and stamps the expiry window on the user.
func (s *Store) SetPassword(u *userDatamodel.User, rawPassword string) error {
	if err := CheckPolicy(rawPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), s.bcryptCost)
	if err != nil {
		return errors.NewInternalError("failed to hash password", err)
	}

	now := s.now()
	expires := now.Add(s.passwordMaxAge)
	u.PasswordHash = string(hash)
	u.PasswordSetAt = &now
	u.PasswordExpiresAt = &expires
	return nil
}

// CheckPassword reports whether the candidate matches the stored hash.
// Corrupt hashes, encoding problems and every other internal failure count
// as a mismatch, never as an error.
func (s *Store) CheckPassword(u *userDatamodel.User, rawPassword string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(rawPassword)) == nil
}

// IsPasswordExpired reports whether the password aged out. Users without an
// expiry timestamp never expire.
func (s *Store) IsPasswordExpired(u *userDatamodel.User) bool {
	if u == nil || u.PasswordExpiresAt == nil {
		return false
	}
	return s.now().After(*u.PasswordExpiresAt)
}

const tempPasswordLength = 16

var tempPasswordAlphabets = []string{
	"abcdefghijkmnpqrstuvwxyz",
	"ABCDEFGHJKLMNPQRSTUVWXYZ",
	"23456789",
	"!@#$%^&*",
}

// GenerateTempPassword produces a random password satisfying the policy,
// used for administrative unlock delivery.
func GenerateTempPassword() (string, error) {
	all := ""
	for _, alphabet := range tempPasswordAlphabets {
		all += alphabet
	}

	buf := make([]byte, 0, tempPasswordLength)
	// one character from each class so the policy always holds
	for _, alphabet := range tempPasswordAlphabets {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < tempPasswordLength {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// shuffle so the class-guaranteed characters are not positional
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		buf[i], buf[j.Int64()] = buf[j.Int64()], buf[i]
	}

	return string(buf), nil
}

func randomChar(alphabet string) (byte, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return alphabet[idx.Int64()], nil
}
