package domain

import "time"

// TwoFactorChallenge is the ephemeral code issued after a successful password
// check when the policy demands a second factor. Only the latest challenge for
// a username is valid; verification consumes it.
type TwoFactorChallenge struct {
	Username  string
	Code      string
	Attempts  int
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the challenge validity window has closed.
func (c *TwoFactorChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
