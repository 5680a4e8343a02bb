package utils

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

const defaultBCryptWorkFactor = 12

// BCrypt implements a BCrypt hasher and credential verifier.
type BCrypt struct {
	bCryptWorkFactor int
}

// NewBCrypt returns a new BCrypt instance.
func NewBCrypt() *BCrypt {
	return &BCrypt{
		defaultBCryptWorkFactor,
	}
}

// NewBCryptWithCost is meant for tests where the default work factor is too slow.
func NewBCryptWithCost(cost int) *BCrypt {
	return &BCrypt{
		cost,
	}
}

func (b *BCrypt) Hash(_ context.Context, secret string) (string, error) {
	s, err := bcrypt.GenerateFromPassword([]byte(secret), b.bCryptWorkFactor)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// Matches compares secret with a stored bcrypt hash. The comparison runs in constant time for a given hash.
func (b *BCrypt) Matches(_ context.Context, secret, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret)) == nil
}
