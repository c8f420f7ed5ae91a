package lockout

import (
	"time"

	userDatamodel "github.com/frahmantamala/identity-management/internal/core/datamodel/user"
)

// Defaults for the lockout policy. Config may override them; tests and the
// in-memory repositories use them directly.
const (
	DefaultThreshold    = 5
	DefaultOTPThreshold = 5
	DefaultLockDuration = 24 * time.Hour
	DefaultOTPTTL       = 5 * time.Minute
)

// Policy is the pure decision engine over a user's failure counters. It
// mutates only the in-memory aggregate; persistence (and its atomicity) is
// the caller's problem.
type Policy struct {
	Threshold    int
	OTPThreshold int
	LockDuration time.Duration
}

func NewPolicy(threshold, otpThreshold int, lockDuration time.Duration) Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if otpThreshold <= 0 {
		otpThreshold = DefaultOTPThreshold
	}
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return Policy{Threshold: threshold, OTPThreshold: otpThreshold, LockDuration: lockDuration}
}

// IsLocked reports whether the account is locked at the given instant.
// locked_until in the future is the single source of truth.
func IsLocked(u *userDatamodel.User, now time.Time) bool {
	return u != nil && u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RecordFailedAttempt increments the failed-login counter and applies the
// lock the moment the counter reaches the threshold (lock-on-threshold, not
// lock-after). Already-locked accounts are left untouched.
func (p Policy) RecordFailedAttempt(u *userDatamodel.User, now time.Time) {
	if IsLocked(u, now) {
		return
	}

	u.FailedLoginCount++
	if u.FailedLoginCount >= p.Threshold {
		p.lock(u, now)
	}
}

// RecordOTPResend applies the threshold rule to OTP resends. The resend
// threshold is configured separately from the failed-login one.
func (p Policy) RecordOTPResend(u *userDatamodel.User, now time.Time) {
	if IsLocked(u, now) {
		return
	}

	u.OTPResendCount++
	if u.OTPResendCount >= p.OTPThreshold {
		p.lock(u, now)
	}
}

// RecordSuccess zeroes both counters after a successful authentication. It
// deliberately leaves locked_until alone: a successful login cannot happen
// while locked, so there is nothing to clear.
func (p Policy) RecordSuccess(u *userDatamodel.User) {
	u.FailedLoginCount = 0
	u.OTPResendCount = 0
}

// ManualUnlock is the administrative override: clears the lock, zeroes the
// counters and forces a password change on next login.
func (p Policy) ManualUnlock(u *userDatamodel.User) {
	u.LockedUntil = nil
	u.FailedLoginCount = 0
	u.OTPResendCount = 0
	u.RequiresPasswordChange = true
}

func (p Policy) lock(u *userDatamodel.User, now time.Time) {
	until := now.Add(p.LockDuration)
	u.LockedUntil = &until
}
