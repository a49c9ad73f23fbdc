package crypto

import (
	"fmt"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher defines the contract for password operations.
// This interface allows us to easily mock hashing in tests or swap algorithms.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// ErrPasswordMismatch is returned by Compare when the password does not match.
var ErrPasswordMismatch = fmt.Errorf("password does not match hash")

// Argon2idHasher implements PasswordHasher using Argon2id.
// Hashes are self-describing ($argon2id$v=19$m=...,t=...,p=...$salt$hash),
// so parameters can be raised later without invalidating stored hashes.
type Argon2idHasher struct {
	params *argon2id.Params
}

// NewArgon2idHasher creates a hasher with parameters sized so a single verify
// takes at least ~50ms on reference hardware.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{
		params: &argon2id.Params{
			Memory:      64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
	}
}

// Hash returns the Argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, h.params)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Compare checks if the provided password matches the hash.
// Returns nil if match, ErrPasswordMismatch otherwise.
func (h *Argon2idHasher) Compare(hash, password string) error {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return fmt.Errorf("failed to compare password: %w", err)
	}
	if !match {
		return ErrPasswordMismatch
	}
	return nil
}

// BcryptHasher implements PasswordHasher using the bcrypt algorithm.
// Used for share web passwords, where verification happens on every
// password-gated read and a cheaper verify is acceptable under rate limiting.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a new hasher with the default cost (12).
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{
		cost: 12,
	}
}

// Hash returns the bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Compare checks if the provided password matches the hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
