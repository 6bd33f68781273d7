package domain

import "time"

// LoginAttemptEvent reports the outcome of a credential check for audit trails.
type LoginAttemptEvent struct {
	EventID     string
	AccountID   string
	Username    string
	Succeeded   bool
	Locked      bool
	IPAddress   *string
	AttemptedAt time.Time
	Metadata    map[string]any
}

// AccountLockedEvent signals that an account crossed the failed-attempt threshold.
type AccountLockedEvent struct {
	EventID     string
	AccountID   string
	Username    string
	LockedAt    time.Time
	LockedUntil time.Time
	Metadata    map[string]any
}

// PasswordChangedEvent signals that an account credential was replaced.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	ChangedBy string
	Recovery  bool
	Metadata  map[string]any
}

// TwoFactorChallengedEvent signals that a login requires second-factor verification.
type TwoFactorChallengedEvent struct {
	EventID      string
	AccountID    string
	Username     string
	ChallengedAt time.Time
	ExpiresAt    time.Time
	Metadata     map[string]any
}

// AccountProvisionedEvent signals the creation of a new account.
type AccountProvisionedEvent struct {
	EventID       string
	AccountID     string
	Username      string
	Role          string
	ProvisionedAt time.Time
	Source        string
	Metadata      map[string]any
}
