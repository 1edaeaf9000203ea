package http

import (
	"crypto/subtle"
)

// secretValidator compares request secrets with the configured one in
// constant time
type secretValidator struct {
	expected []byte
}

func newSecretValidator(secret string) *secretValidator {
	return &secretValidator{expected: []byte(secret)}
}

func (v *secretValidator) Valid(secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), v.expected) == 1
}
