package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

const defaultAccessTokenTTL = 15 * time.Minute

var (
	// ErrTokenInvalid indicates the token is malformed or its signature does not verify.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates the token's expiry has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrKeyIDMissing indicates no kid is associated with the supplied key.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
)

// AccessTokenClaims carries identity and role context in issued tokens.
// Subject holds the normalized username.
type AccessTokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies RS256 bearer tokens. Issuance and
// verification are pure: no state beyond the key material is consulted.
type TokenIssuer struct {
	provider KeyProvider
	issuer   string
	kid      string
	ttl      time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	publicKeys map[string]*rsa.PublicKey
}

// NewTokenIssuer constructs a TokenIssuer using the supplied key provider and kid.
func NewTokenIssuer(provider KeyProvider, issuer, kid string, ttl time.Duration) (*TokenIssuer, error) {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	ti := &TokenIssuer{
		provider:   provider,
		issuer:     issuer,
		kid:        kid,
		ttl:        ttl,
		now:        time.Now,
		publicKeys: make(map[string]*rsa.PublicKey),
	}

	if enumerator, ok := provider.(interface {
		ListVerificationKeys() map[string]*rsa.PublicKey
	}); ok {
		for id, key := range enumerator.ListVerificationKeys() {
			ti.publicKeys[id] = key
		}
	}

	return ti, nil
}

// WithClock overrides the issuer clock, used in tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// Issue signs a token asserting username and role for the configured TTL.
func (t *TokenIssuer) Issue(username string, role string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("jwt: username is required")
	}

	now := t.now().UTC()
	claims := &AccessTokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{t.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signingKey, err := t.provider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = t.kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Parse validates signature, issuer, audience, and expiry, failing closed on
// any mismatch, and returns the embedded claims.
func (t *TokenIssuer) Parse(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}

		kid, ok := tok.Header["kid"].(string)
		if !ok {
			return nil, ErrKeyIDMissing
		}

		return t.verificationKey(kid)
	}, jwt.WithIssuer(t.issuer), jwt.WithAudience(t.issuer), jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (t *TokenIssuer) verificationKey(kid string) (*rsa.PublicKey, error) {
	t.mu.RLock()
	key, ok := t.publicKeys[kid]
	t.mu.RUnlock()
	if ok {
		return key, nil
	}

	if t.provider != nil {
		fetched, err := t.provider.GetVerificationKey(kid)
		if err == nil {
			t.mu.Lock()
			t.publicKeys[kid] = fetched
			t.mu.Unlock()
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

// JWKS produces the JSON Web Key Set for all registered verification keys so
// external verifiers can validate tokens without a server round trip.
func (t *TokenIssuer) JWKS() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]map[string]string, 0, len(t.publicKeys))
	for kid, key := range t.publicKeys {
		if key == nil {
			continue
		}
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}

	return json.Marshal(map[string]any{"keys": keys})
}
