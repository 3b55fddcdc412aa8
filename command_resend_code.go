package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ResendCodeMessage struct {
	Email string `json:"email" form:"email"`
}

func (e ResendCodeMessage) Type() string { return "account.resend_code" }

func (e ResendCodeMessage) Validate() error {
	e.Email = strings.TrimSpace(e.Email)
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required, is.Email),
		)
	}, "Invalid resend payload")
}

// ResendCodeHandler replaces the pending verification code. A new code
// can only be issued once the cool down since the last one elapsed.
type ResendCodeHandler struct {
	handlerDeps
}

func NewResendCodeHandler(repo RepositoryManager, opts ...HandlerOption) *ResendCodeHandler {
	return &ResendCodeHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *ResendCodeHandler) Execute(ctx context.Context, event ResendCodeMessage) error {
	if err := cancelled(ctx, "verification code resend"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *ResendCodeHandler) execute(ctx context.Context, event ResendCodeMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	ttl := h.config.GetVerificationCodeTTL()
	var account *Account
	var code string

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByEmail(ctx, tx, event.Email); err != nil {
			return err
		}

		if account.EmailVerified {
			return ErrAlreadyVerified
		}

		now := h.now()
		if issuedAt, ok := account.CodeIssuedAt(ttl); ok {
			if wait := CooldownRemaining(now, issuedAt, h.config.GetResendCooldown()); wait > 0 {
				return ErrTooManyRequests
			}
		}

		if code, err = h.secrets.VerificationCode(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
		}

		account.VerificationCode = code
		account.VerificationCodeExpiresAt = timePtr(now.Add(ttl))

		return h.repo.Accounts().UpdateVersionedTx(ctx, tx, account,
			"verification_code",
			"verification_code_expires_at",
		)
	})

	if err != nil {
		return asRichError(err, "verification code resend transaction failed")
	}

	h.notify(ctx, newNotification(NotificationVerificationCode, account, map[string]any{
		"code":       code,
		"expires_in": ttl.String(),
	}))

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventCodeResent,
		Actor:     SelfActor(account),
		AccountID: account.ID.String(),
	})

	return nil
}
