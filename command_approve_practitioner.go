package accounts

import (
	"context"

	"github.com/uptrace/bun"
)

type ApprovePractitionerMessage struct {
	AccountID string   `json:"id"`
	Actor     ActorRef `json:"-"`

	OnResponse func(*Account) `json:"-"`
}

func (e ApprovePractitionerMessage) Type() string { return "practitioner.approve" }

// ApprovePractitionerHandler moves a verified, pending practitioner to
// APPROVED and activates the account.
type ApprovePractitionerHandler struct {
	handlerDeps
}

func NewApprovePractitionerHandler(repo RepositoryManager, opts ...HandlerOption) *ApprovePractitionerHandler {
	return &ApprovePractitionerHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *ApprovePractitionerHandler) Execute(ctx context.Context, event ApprovePractitionerMessage) error {
	if err := cancelled(ctx, "practitioner approval"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *ApprovePractitionerHandler) execute(ctx context.Context, event ApprovePractitionerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var account *Account
	var tc TransitionContext

	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByID(ctx, tx, event.AccountID); err != nil {
			return err
		}

		if tc, err = h.machine.Transition(ctx, tx, event.Actor, account, EventApprove); err != nil {
			return err
		}

		return h.repo.AuditLogs().AppendTx(ctx, tx,
			NewAuditLogEntry(account, AuditActionApprove, event.Actor, tc.OccurredAt),
		)
	})

	if err != nil {
		return asRichError(err, "practitioner approval transaction failed")
	}

	h.logger.Info("practitioner approved", "id", account.ID, "actor", event.Actor.ID)
	h.machine.Publish(ctx, tc)
	h.notify(ctx, newNotification(NotificationPractitionerApproved, account, nil))

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
