package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AuditTrailHandler lists the administrative actions taken on an account
type AuditTrailHandler struct {
	handlerDeps
}

func NewAuditTrailHandler(repo RepositoryManager, opts ...HandlerOption) *AuditTrailHandler {
	return &AuditTrailHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *AuditTrailHandler) Query(ctx context.Context, accountID string) ([]*AuditLogEntry, error) {
	if err := cancelled(ctx, "audit trail lookup"); err != nil {
		return nil, err
	}

	account, err := h.lookupAccount(ctx, accountID)
	if err != nil {
		return nil, asRichError(err, "audit trail lookup failed")
	}

	entries, err := h.repo.AuditLogs().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not list audit entries")
	}
	if entries == nil {
		entries = []*AuditLogEntry{}
	}
	return entries, nil
}
