package domain

import (
	"strings"
	"time"
)

// AccountRole enumerates the coarse authorization roles carried in issued tokens.
type AccountRole string

const (
	RoleEmployee      AccountRole = "employee"
	RoleAdministrator AccountRole = "administrator"
)

// Account mirrors the persisted representation in the accounts table.
// Lockout counters, credential material, and security answers are owned by the
// credential store; every mutation flows through a version-checked Save.
type Account struct {
	ID                 string
	Username           string
	FirstName          string
	LastName           string
	BirthDate          *time.Time
	PasswordHash       string
	PasswordAlgo       string
	Role               AccountRole
	MustChangePassword bool
	ExpiresAt          *time.Time
	FailedAttempts     int
	LockedUntil        *time.Time
	SecurityAnswers    []SecurityAnswer
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SecurityAnswer pairs a recovery question with the hash of its registered answer.
type SecurityAnswer struct {
	Question   string
	AnswerHash string
}

// PasswordHistoryEntry tracks a superseded credential hash for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	AccountID    string
	PasswordHash string
	SetAt        time.Time
}

// NormalizeUsername canonicalizes usernames for case-insensitive comparison.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Expired reports whether the account carries an expiry date in the past.
func (a *Account) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// Locked reports whether the account is inside an active lockout window.
// A lockout whose deadline has passed is treated as released; no explicit
// unlock transition exists.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// LockRemaining returns how long the active lockout still holds. Zero when the
// account is not locked.
func (a *Account) LockRemaining(now time.Time) time.Duration {
	if !a.Locked(now) {
		return 0
	}
	return a.LockedUntil.Sub(now)
}

// RegisterFailure records a failed credential check. When the counter reaches
// maxAttempts the account transitions to locked until now+lockout and the
// counter resets. Returns true when the lockout fired on this call.
func (a *Account) RegisterFailure(now time.Time, maxAttempts int, lockout time.Duration) bool {
	if a.Locked(now) {
		return false
	}

	// A stale lockout deadline is cleared lazily on the next attempt.
	a.LockedUntil = nil

	a.FailedAttempts++
	if maxAttempts <= 0 || a.FailedAttempts < maxAttempts {
		return false
	}

	until := now.Add(lockout)
	a.LockedUntil = &until
	a.FailedAttempts = 0
	return true
}

// RegisterSuccess resets the failure counter after a successful credential check.
func (a *Account) RegisterSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
}

// FindAnswer returns the registered answer hash for the given question.
func (a *Account) FindAnswer(question string) (SecurityAnswer, bool) {
	needle := strings.TrimSpace(question)
	for _, answer := range a.SecurityAnswers {
		if strings.EqualFold(answer.Question, needle) {
			return answer, true
		}
	}
	return SecurityAnswer{}, false
}
