package accounts

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditLogs is append only, entries are never updated or removed
type AuditLogs interface {
	Append(ctx context.Context, entry *AuditLogEntry) error
	AppendTx(ctx context.Context, tx bun.IDB, entry *AuditLogEntry) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*AuditLogEntry, error)
	ListByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*AuditLogEntry, error)
}

type auditLogs struct {
	db *bun.DB
}

func NewAuditLogsRepository(db *bun.DB) AuditLogs {
	return &auditLogs{db: db}
}

func (r *auditLogs) Append(ctx context.Context, entry *AuditLogEntry) error {
	return r.AppendTx(ctx, r.db, entry)
}

func (r *auditLogs) AppendTx(ctx context.Context, tx bun.IDB, entry *AuditLogEntry) error {
	_, err := tx.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (r *auditLogs) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*AuditLogEntry, error) {
	return r.ListByAccountTx(ctx, r.db, accountID)
}

func (r *auditLogs) ListByAccountTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) ([]*AuditLogEntry, error) {
	var entries []*AuditLogEntry
	err := tx.NewSelect().
		Model(&entries).
		Where("?TableAlias.account_id = ?", accountID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
