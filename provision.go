package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/uptrace/bun"
)

// SuperAdminSeed describes the administrator provisioned at startup.
// Administrators never go through self registration.
type SuperAdminSeed struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

func (s SuperAdminSeed) validate() error {
	s.Email = strings.TrimSpace(s.Email)
	return validation.ValidateStruct(&s,
		validation.Field(&s.Email, validation.Required, is.Email),
		validation.Field(&s.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&s.Name, validation.By(trimmedLength(2, 100))),
	)
}

// ProvisionSuperAdmin creates the administrator if no account owns the
// email yet. It returns the stored account and whether it was created.
func ProvisionSuperAdmin(ctx context.Context, repo RepositoryManager, hasher PasswordHasher, seed SuperAdminSeed) (*Account, bool, error) {
	if err := validateMessage(seed.validate, "invalid super admin seed"); err != nil {
		return nil, false, err
	}
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}

	var (
		account *Account
		created bool
	)
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := repo.Accounts().GetByEmailTx(ctx, tx, seed.Email)
		if err == nil {
			if !existing.IsSuperAdmin() {
				return ErrRoleMismatch
			}
			account = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}

		hash, err := hasher.HashPassword(seed.Password)
		if err != nil {
			return err
		}

		account, err = repo.Accounts().RegisterTx(ctx, tx, &Account{
			Email:         seed.Email,
			PasswordHash:  hash,
			Name:          strings.TrimSpace(seed.Name),
			Phone:         seed.Phone,
			Role:          RoleSuperAdmin,
			Status:        StatusActive,
			EmailVerified: true,
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, asRichError(err, "failed to provision super admin")
	}
	return account, created, nil
}
