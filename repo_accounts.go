package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the account store. Every status changing write goes
// through UpdateVersionedTx.
type Accounts interface {
	repository.Repository[*Account]

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	GetByReapplyTokenTx(ctx context.Context, tx bun.IDB, rawToken string) (*Account, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	// UpdateVersionedTx persists columns only if the stored version still
	// matches account.Version, returns ErrStaleAccount otherwise.
	UpdateVersionedTx(ctx context.Context, tx bun.IDB, account *Account, columns ...string) error

	TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) error
}

type accounts struct {
	repository.Repository[*Account]
	db    *bun.DB
	clock Clock
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// AccountsOption configures the accounts repository
type AccountsOption func(*accounts)

// WithAccountsClock overrides the clock used for updated_at stamps
func WithAccountsClock(clock Clock) AccountsOption {
	return func(a *accounts) {
		if clock != nil {
			a.clock = clock
		}
	}
}

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	out := &accounts{
		Repository: repo,
		db:         db,
		clock:      normalizeClock(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(out)
		}
	}
	return out
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.findOne(ctx, tx, "email", NormalizeEmail(email))
}

func (a *accounts) GetByUUIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	return a.findOne(ctx, tx, "id", id)
}

func (a *accounts) GetByReapplyTokenTx(ctx context.Context, tx bun.IDB, rawToken string) (*Account, error) {
	raw := strings.TrimSpace(rawToken)
	if raw == "" {
		return nil, repository.NewRecordNotFound()
	}
	return a.findOne(ctx, tx, "reapply_token_hash", HashReapplyToken(raw))
}

func (a *accounts) findOne(ctx context.Context, tx bun.IDB, column string, value any) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"column": column,
				})
		}
		return nil, err
	}
	return record, nil
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account, a.clock())
	out, err := a.Repository.CreateTx(ctx, tx, account)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return out, nil
}

func (a *accounts) UpdateVersionedTx(ctx context.Context, tx bun.IDB, account *Account, columns ...string) error {
	expected := account.Version
	account.Version = expected + 1
	account.UpdatedAt = timePtr(a.clock())

	cols := append([]string{"version", "updated_at"}, columns...)

	res, err := tx.NewUpdate().
		Model(account).
		Column(cols...).
		Where("?TableAlias.id = ?", account.ID).
		Where("?TableAlias.version = ?", expected).
		Exec(ctx)
	if err != nil {
		account.Version = expected
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		account.Version = expected
		return err
	}
	if n == 0 {
		account.Version = expected
		return ErrStaleAccount
	}
	return nil
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account, at time.Time) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account, at)
}

// TrackSuccessfulLoginTx rotates the login timestamps in a single
// statement so concurrent logins never lose the previous value.
func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account, at time.Time) error {
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("previous_login_at = last_login_at").
		Set("last_login_at = ?", at).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	account.PreviousLoginAt = account.LastLoginAt
	account.LastLoginAt = timePtr(at)
	return nil
}

func prepareAccountDefaults(record *Account, now time.Time) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.Status == "" {
		record.Status = StatusPending
	}

	if record.IsPractitioner() && record.ApprovalStatus == "" {
		record.ApprovalStatus = ApprovalPending
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		record.CreatedAt = timePtr(now)
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = timePtr(now)
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsDuplicatedKey(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
