package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/uptrace/bun"
)

type ReapplyPractitionerMessage struct {
	Token      string `json:"token" form:"token"`
	Role       string `json:"role" form:"role"`
	ProfileURL string `json:"profile_url" form:"profile_url"`

	OnResponse func(*Account) `json:"-"`
}

func (e ReapplyPractitionerMessage) Type() string { return "practitioner.reapply" }

func (e ReapplyPractitionerMessage) Validate() error {
	e.ProfileURL = strings.TrimSpace(e.ProfileURL)
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Token, validation.Required),
			validation.Field(&e.Role, validation.Required, validation.In(RolePractitioner)),
			validation.Field(&e.ProfileURL, validation.Required, is.URL),
		)
	}, "Invalid reapply payload")
}

// ReapplyPractitionerHandler puts a rejected practitioner back in the
// approval queue. The token is consumed in the same write.
type ReapplyPractitionerHandler struct {
	handlerDeps
}

func NewReapplyPractitionerHandler(repo RepositoryManager, opts ...HandlerOption) *ReapplyPractitionerHandler {
	return &ReapplyPractitionerHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *ReapplyPractitionerHandler) Execute(ctx context.Context, event ReapplyPractitionerMessage) error {
	if err := cancelled(ctx, "practitioner reapply"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *ReapplyPractitionerHandler) execute(ctx context.Context, event ReapplyPractitionerMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var account *Account
	var tc TransitionContext

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByReapplyTokenTx(ctx, tx, event.Token)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidToken
			}
			return err
		}

		tc, err = h.machine.Transition(ctx, tx, SelfActor(account), account, EventReapply,
			WithProfileURL(strings.TrimSpace(event.ProfileURL)),
		)
		return err
	})

	if err != nil {
		return asRichError(err, "practitioner reapply transaction failed")
	}

	h.machine.Publish(ctx, tc)

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
