package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

type InactivateAccountMessage struct {
	AccountID string   `json:"id"`
	Reason    string   `json:"reason" form:"reason"`
	Note      string   `json:"note" form:"note"`
	Actor     ActorRef `json:"-"`

	OnResponse func(*Account) `json:"-"`
}

func (e InactivateAccountMessage) Type() string { return "account.inactivate" }

func (e InactivateAccountMessage) Validate() error {
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Reason, validation.By(trimmedLength(1, 1000))),
			validation.Field(&e.Note, validation.Length(0, 2000)),
		)
	}, "Invalid inactivation payload")
}

type ReactivateAccountMessage struct {
	AccountID string   `json:"id"`
	Note      string   `json:"note" form:"note"`
	Actor     ActorRef `json:"-"`

	OnResponse func(*Account) `json:"-"`
}

func (e ReactivateAccountMessage) Type() string { return "account.reactivate" }

func (e ReactivateAccountMessage) Validate() error {
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Note, validation.Length(0, 2000)),
		)
	}, "Invalid reactivation payload")
}

// InactivateAccountHandler disables login for any non administrator
type InactivateAccountHandler struct {
	handlerDeps
}

func NewInactivateAccountHandler(repo RepositoryManager, opts ...HandlerOption) *InactivateAccountHandler {
	return &InactivateAccountHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *InactivateAccountHandler) Execute(ctx context.Context, event InactivateAccountMessage) error {
	if err := cancelled(ctx, "account inactivation"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *InactivateAccountHandler) execute(ctx context.Context, event InactivateAccountMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	reason := strings.TrimSpace(event.Reason)
	note := strings.TrimSpace(event.Note)

	var account *Account
	var tc TransitionContext

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByID(ctx, tx, event.AccountID); err != nil {
			return err
		}

		tc, err = h.machine.Transition(ctx, tx, event.Actor, account, EventInactivate,
			WithTransitionReason(reason),
			WithTransitionNote(note),
		)
		if err != nil {
			return err
		}

		entry := NewAuditLogEntry(account, AuditActionInactivate, event.Actor, tc.OccurredAt)
		entry.Reason = reason
		entry.Note = note
		return h.repo.AuditLogs().AppendTx(ctx, tx, entry)
	})

	if err != nil {
		return asRichError(err, "account inactivation transaction failed")
	}

	h.logger.Info("account inactivated", "id", account.ID, "actor", event.Actor.ID)
	h.machine.Publish(ctx, tc)
	h.notify(ctx, newNotification(NotificationAccountInactivated, account, map[string]any{
		"reason": reason,
		"note":   note,
	}))

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

// ReactivateAccountHandler restores login for an inactivated account
type ReactivateAccountHandler struct {
	handlerDeps
}

func NewReactivateAccountHandler(repo RepositoryManager, opts ...HandlerOption) *ReactivateAccountHandler {
	return &ReactivateAccountHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *ReactivateAccountHandler) Execute(ctx context.Context, event ReactivateAccountMessage) error {
	if err := cancelled(ctx, "account reactivation"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *ReactivateAccountHandler) execute(ctx context.Context, event ReactivateAccountMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	note := strings.TrimSpace(event.Note)

	var account *Account
	var tc TransitionContext

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByID(ctx, tx, event.AccountID); err != nil {
			return err
		}

		tc, err = h.machine.Transition(ctx, tx, event.Actor, account, EventReactivate,
			WithTransitionNote(note),
		)
		if err != nil {
			return err
		}

		entry := NewAuditLogEntry(account, AuditActionReactivate, event.Actor, tc.OccurredAt)
		entry.Note = note
		return h.repo.AuditLogs().AppendTx(ctx, tx, entry)
	})

	if err != nil {
		return asRichError(err, "account reactivation transaction failed")
	}

	h.logger.Info("account reactivated", "id", account.ID, "actor", event.Actor.ID)
	h.machine.Publish(ctx, tc)
	h.notify(ctx, newNotification(NotificationAccountReactivated, account, map[string]any{
		"note": note,
	}))

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
