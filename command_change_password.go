package accounts

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	AccountID       string `json:"-"`
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

func (e ChangePasswordMessage) Type() string { return "account.change_password" }

func (e ChangePasswordMessage) Validate() error {
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.CurrentPassword, validation.Required),
			validation.Field(&e.NewPassword,
				validation.Required,
				validation.Length(minPasswordLength, maxPasswordLength),
				validation.By(func(value any) error {
					if s, _ := value.(string); s != "" && s == e.CurrentPassword {
						return errors.New("must differ from the current password")
					}
					return nil
				}),
			),
		)
	}, "Invalid change password payload")
}

type ChangePasswordHandler struct {
	handlerDeps
}

func NewChangePasswordHandler(repo RepositoryManager, opts ...HandlerOption) *ChangePasswordHandler {
	return &ChangePasswordHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := cancelled(ctx, "password change"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	hash, err := h.hasher.HashPassword(event.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	var account *Account
	err = h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByID(ctx, tx, event.AccountID); err != nil {
			return err
		}

		if err := h.hasher.ComparePasswordAndHash(event.CurrentPassword, account.PasswordHash); err != nil {
			return ErrWrongPassword
		}

		account.PasswordHash = hash
		account.PasswordChangedAt = timePtr(h.now())
		return h.repo.Accounts().UpdateVersionedTx(ctx, tx, account, "password_hash", "password_changed_at")
	})

	if err != nil {
		return asRichError(err, "password change transaction failed")
	}

	h.notify(ctx, newNotification(NotificationPasswordChanged, account, nil))
	h.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     SelfActor(account),
		AccountID: account.ID.String(),
	})

	return nil
}
