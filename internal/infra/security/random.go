package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	tempPasswordUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempPasswordLower   = "abcdefghijkmnpqrstuvwxyz"
	tempPasswordDigits  = "23456789"
	tempPasswordSpecial = "!@#$%&*-_+="
)

// GenerateNumericCode returns a random numeric string of the given length.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}

	return string(digits), nil
}

// GenerateTempPassword returns a random password of the given length drawing
// from all four character classes, with at least one character of each.
// Ambiguous characters (O/0, l/1) are excluded from the alphabet.
func GenerateTempPassword(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("length must be at least 4")
	}

	classes := []string{tempPasswordUpper, tempPasswordLower, tempPasswordDigits, tempPasswordSpecial}
	full := tempPasswordUpper + tempPasswordLower + tempPasswordDigits + tempPasswordSpecial

	out := make([]byte, length)
	for i, class := range classes {
		c, err := pickRandom(class)
		if err != nil {
			return "", err
		}
		out[i] = c
	}
	for i := len(classes); i < length; i++ {
		c, err := pickRandom(full)
		if err != nil {
			return "", err
		}
		out[i] = c
	}

	// Shuffle so the guaranteed class characters do not cluster at the front.
	for i := len(out) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("shuffle password: %w", err)
		}
		j := int(n.Int64())
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

func pickRandom(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("generate password: %w", err)
	}
	return alphabet[n.Int64()], nil
}
