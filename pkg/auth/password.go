package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits       = "0123456789"
	symbols      = "@!#&$%*_-()+=[]{};:',<>?/|"

	MinPasswordLength = 8
)

var (
	ErrPasswordTooShort = errors.New("password length too short")
	ErrNoLowercase      = errors.New("include at least one lowercase letter")
	ErrNoUppercase      = errors.New("include at least one uppercase character")
	ErrNoDigit          = errors.New("include at least one number")
	ErrNoSymbol         = errors.New("include at least one special character")
)

// CheckStrength returns the first rule the password breaks, wrapped in ErrWeakPassword.
func CheckStrength(password string) error {
	var rule error
	switch {
	case len(password) < MinPasswordLength:
		rule = ErrPasswordTooShort
	case !strings.ContainsAny(password, lowerLetters):
		rule = ErrNoLowercase
	case !strings.ContainsAny(password, upperLetters):
		rule = ErrNoUppercase
	case !strings.ContainsAny(password, digits):
		rule = ErrNoDigit
	case !strings.ContainsAny(password, symbols):
		rule = ErrNoSymbol
	default:
		return nil
	}
	return fmt.Errorf("%w: %w", ErrWeakPassword, rule)
}

// GeneratePassword returns a random password that passes CheckStrength.
func GeneratePassword() string {
	for {
		var b []byte
		b = appendRandom(b, lowerLetters, 1+randomInt(5))
		b = appendRandom(b, upperLetters, 1+randomInt(5))
		b = appendRandom(b, digits, 1+randomInt(5))
		b = appendRandom(b, symbols, 1+randomInt(2))
		shuffle(b)
		if password := string(b); CheckStrength(password) == nil {
			return password
		}
	}
}

// GenerateUsername returns a random mix of letters and digits.
func GenerateUsername() string {
	var b []byte
	b = appendRandom(b, lowerLetters, 1+randomInt(5))
	b = appendRandom(b, upperLetters, 1+randomInt(5))
	b = appendRandom(b, digits, 1+randomInt(5))
	shuffle(b)
	return string(b)
}

func appendRandom(b []byte, alphabet string, n int) []byte {
	for range n {
		b = append(b, alphabet[randomInt(len(alphabet))])
	}
	return b
}

func shuffle(b []byte) {
	for i := len(b) - 1; i > 0; i-- {
		j := randomInt(i + 1)
		b[i], b[j] = b[j], b[i]
	}
}

func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
