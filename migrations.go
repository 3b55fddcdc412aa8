package accounts

import (
	"context"

	"github.com/uptrace/bun"
)

// Migrate creates the account and audit log tables and their indexes.
// It is safe to call on every start.
func Migrate(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*Account)(nil),
		(*AuditLogEntry)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*Account)(nil), "accounts_reapply_token_hash_idx", []string{"reapply_token_hash"}},
		{(*Account)(nil), "accounts_role_status_idx", []string{"role", "status"}},
		{(*AuditLogEntry)(nil), "audit_logs_account_id_idx", []string{"account_id"}},
	}

	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
