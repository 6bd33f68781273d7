package domain

import "time"

// SecurityPolicy is the tenant-wide rule set governing passwords, lockout,
// and two-factor requirements. A single row exists; it is created with
// defaults at bootstrap and only ever updated in place.
type SecurityPolicy struct {
	MinLength                 int
	RequireUpperLower         bool
	RequireDigit              bool
	RequireSpecial            bool
	ForbidPersonalData        bool
	MinStrengthScore          int
	Require2FA                bool
	PreventReuse              bool
	HistoryLimit              int
	MaxFailedAttempts         int
	LockoutDuration           time.Duration
	RequiredSecurityQuestions int
	UpdatedAt                 time.Time
}

// DefaultSecurityPolicy returns the policy applied when no row exists yet.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		MinLength:                 8,
		RequireUpperLower:         true,
		RequireDigit:              true,
		RequireSpecial:            false,
		ForbidPersonalData:        true,
		MinStrengthScore:          0,
		Require2FA:                false,
		PreventReuse:              true,
		HistoryLimit:              5,
		MaxFailedAttempts:         3,
		LockoutDuration:           5 * time.Minute,
		RequiredSecurityQuestions: 3,
	}
}

// PersonalData carries the account holder attributes the password validator
// checks candidate passwords against.
type PersonalData struct {
	Username  string
	FirstName string
	LastName  string
	BirthDate *time.Time
}
