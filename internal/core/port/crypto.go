package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
// The same hasher covers credentials, history entries, and security answers.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
}
