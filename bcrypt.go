package accounts

import (
	"errors"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword hashing an empty password is not allowed
var ErrEmptyPassword = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword password does not match the stored hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash")

// BcryptHasher implements PasswordHasher
type BcryptHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     string
}

// NewBcryptHasher returns a hasher, a zero cost uses the build default
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = passwordHashCost()
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &BcryptHasher{cost: cost}
}

// HashPassword will generate a password hash
func (h *BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	return string(out), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// BurnCompare runs a comparison against a throwaway hash so that unknown
// emails take as long to reject as wrong passwords.
func (h *BcryptHasher) BurnCompare(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.HashPassword(uuid.NewString())
	})
	_ = h.ComparePasswordAndHash(password, h.dummy)
}
