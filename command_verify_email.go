package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	Email string `json:"email" form:"email"`
	Code  string `json:"otp" form:"otp"`

	OnResponse func(*Account) `json:"-"`
}

func (e VerifyEmailMessage) Type() string { return "account.verify_email" }

func (e VerifyEmailMessage) Validate() error {
	e.Email = strings.TrimSpace(e.Email)
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required, is.Email),
			validation.Field(&e.Code, validation.Required),
		)
	}, "Invalid verification payload")
}

// VerifyEmailHandler consumes the one time code sent on registration
type VerifyEmailHandler struct {
	handlerDeps
}

func NewVerifyEmailHandler(repo RepositoryManager, opts ...HandlerOption) *VerifyEmailHandler {
	return &VerifyEmailHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	if err := cancelled(ctx, "email verification"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var account *Account
	var tc TransitionContext

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByEmail(ctx, tx, event.Email); err != nil {
			return err
		}

		if account.EmailVerified {
			return ErrAlreadyVerified
		}

		if !account.HasPendingCode() || !secretsEqual(account.VerificationCode, event.Code) {
			return ErrInvalidCode
		}

		if IsExpired(h.now(), account.VerificationCodeExpiresAt) {
			return ErrExpiredCode
		}

		tc, err = h.machine.Transition(ctx, tx, SelfActor(account), account, EventVerifyEmail)
		return err
	})

	if err != nil {
		return asRichError(err, "email verification transaction failed")
	}

	h.machine.Publish(ctx, tc)

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
