package accounts

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const minRejectionReasonLength = 5

type RejectPractitionerMessage struct {
	AccountID string   `json:"id"`
	Reason    string   `json:"reason" form:"reason"`
	Actor     ActorRef `json:"-"`

	OnResponse func(*Account) `json:"-"`
}

func (e RejectPractitionerMessage) Type() string { return "practitioner.reject" }

func (e RejectPractitionerMessage) Validate() error {
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Reason, validation.By(trimmedLength(minRejectionReasonLength, 1000))),
		)
	}, "Invalid rejection payload")
}

// RejectPractitionerHandler records the rejection and issues the
// single use reapply token. Only its hash is stored.
type RejectPractitionerHandler struct {
	handlerDeps
}

func NewRejectPractitionerHandler(repo RepositoryManager, opts ...HandlerOption) *RejectPractitionerHandler {
	return &RejectPractitionerHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *RejectPractitionerHandler) Execute(ctx context.Context, event RejectPractitionerMessage) error {
	if err := cancelled(ctx, "practitioner rejection"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *RejectPractitionerHandler) execute(ctx context.Context, event RejectPractitionerMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	reason := strings.TrimSpace(event.Reason)
	ttl := h.config.GetReapplyTokenTTL()

	var account *Account
	var tc TransitionContext
	var rawToken string

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByID(ctx, tx, event.AccountID); err != nil {
			return err
		}

		raw, hash, err := h.secrets.ReapplyToken()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reapply token")
		}

		tc, err = h.machine.Transition(ctx, tx, event.Actor, account, EventReject,
			WithTransitionReason(reason),
			WithReapplyToken(hash, h.now().Add(ttl)),
		)
		if err != nil {
			return err
		}
		rawToken = raw

		entry := NewAuditLogEntry(account, AuditActionReject, event.Actor, tc.OccurredAt)
		entry.Reason = reason
		return h.repo.AuditLogs().AppendTx(ctx, tx, entry)
	})

	if err != nil {
		return asRichError(err, "practitioner rejection transaction failed")
	}

	h.logger.Info("practitioner rejected", "id", account.ID, "actor", event.Actor.ID)
	h.machine.Publish(ctx, tc)
	h.notify(ctx, newNotification(NotificationPractitionerRejected, account, map[string]any{
		"reason":        reason,
		"reapply_token": rawToken,
		"expires_in":    ttl.String(),
	}))

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
