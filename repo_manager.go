package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	AuditLogs() AuditLogs
}

type mngr struct {
	db        *bun.DB
	accounts  Accounts
	auditLogs AuditLogs
}

// NewRepositoryManager wires the account and audit stores on db
func NewRepositoryManager(db *bun.DB, opts ...AccountsOption) RepositoryManager {
	return &mngr{
		db:        db,
		accounts:  NewAccountsRepository(db, opts...),
		auditLogs: NewAuditLogsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.auditLogs == nil {
		return errors.New("repository auditLogs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) AuditLogs() AuditLogs {
	return m.auditLogs
}
