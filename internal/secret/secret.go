// Package secret implements the shared-secret gate that protects updates to
// existing transactions.
package secret

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalid is returned when a presented secret does not match.
var ErrInvalid = errors.New("incorrect PIN")

// ErrNotConfigured is returned by New for an empty secret.
var ErrNotConfigured = errors.New("shared secret not configured")

// Verifier checks a candidate against one configured secret. The configured
// value is either the plain secret or a bcrypt hash of it.
type Verifier struct {
	hash  []byte
	plain []byte
}

// New builds a Verifier. Values starting with "$2" are treated as bcrypt hashes.
func New(configured string) (*Verifier, error) {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return nil, ErrNotConfigured
	}
	if IsHash(configured) {
		if _, err := bcrypt.Cost([]byte(configured)); err != nil {
			return nil, err
		}
		return &Verifier{hash: []byte(configured)}, nil
	}
	return &Verifier{plain: []byte(configured)}, nil
}

// MustNew is New for tests and fixed configuration.
func MustNew(configured string) *Verifier {
	v, err := New(configured)
	if err != nil {
		panic(err)
	}
	return v
}

// Verify returns nil when candidate matches, ErrInvalid otherwise.
func (v *Verifier) Verify(candidate string) error {
	if v == nil {
		return ErrInvalid
	}
	if v.hash != nil {
		if bcrypt.CompareHashAndPassword(v.hash, []byte(candidate)) != nil {
			return ErrInvalid
		}
		return nil
	}
	if subtle.ConstantTimeCompare(v.plain, []byte(candidate)) != 1 {
		return ErrInvalid
	}
	return nil
}

// Hash returns a bcrypt hash suitable for the SECURE_PIN setting.
func Hash(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// IsHash reports whether s looks like a bcrypt hash.
func IsHash(s string) bool {
	return strings.HasPrefix(s, "$2")
}
