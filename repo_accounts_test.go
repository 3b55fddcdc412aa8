package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, repo accounts.Accounts, email string) *accounts.Account {
	t.Helper()
	account, err := repo.Register(context.Background(), &accounts.Account{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Seed Account",
		Phone:        testPhone,
		Role:         accounts.RolePractitioner,
	})
	require.NoError(t, err)
	return account
}

func TestAccountsRegisterAppliesDefaults(t *testing.T) {
	db := newTestDB(t)
	clock := newTestClock(baseTime)
	repo := accounts.NewAccountsRepository(db, accounts.WithAccountsClock(clock.Now))

	account := seedAccount(t, repo, "  Seed@Example.com ")

	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.Equal(t, "seed@example.com", account.Email)
	assert.Equal(t, accounts.StatusPending, account.Status)
	assert.Equal(t, accounts.ApprovalPending, account.ApprovalStatus)
	require.NotNil(t, account.CreatedAt)
	assert.True(t, account.CreatedAt.Equal(baseTime))

	found, err := repo.GetByEmail(context.Background(), "SEED@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = repo.Register(context.Background(), &accounts.Account{
		Email:        "seed@example.com",
		PasswordHash: "hash",
		Name:         "Copy",
		Phone:        testPhone,
	})
	assert.ErrorIs(t, err, accounts.ErrEmailTaken)
}

func TestAccountsNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := accounts.NewAccountsRepository(db)
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "missing@example.com")
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = repo.GetByUUIDTx(ctx, db, uuid.New())
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = repo.GetByReapplyTokenTx(ctx, db, "   ")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestAccountsUpdateVersionedDetectsStaleCopies(t *testing.T) {
	db := newTestDB(t)
	repo := accounts.NewAccountsRepository(db)
	ctx := context.Background()

	seeded := seedAccount(t, repo, "cas@example.com")

	first, err := repo.GetByUUIDTx(ctx, db, seeded.ID)
	require.NoError(t, err)
	second, err := repo.GetByUUIDTx(ctx, db, seeded.ID)
	require.NoError(t, err)

	first.ApprovalStatus = accounts.ApprovalApproved
	first.Status = accounts.StatusActive
	require.NoError(t, repo.UpdateVersionedTx(ctx, db, first, "status", "approval_status"))
	assert.Equal(t, int64(1), first.Version)

	second.ApprovalStatus = accounts.ApprovalRejected
	second.Status = accounts.StatusRejected
	err = repo.UpdateVersionedTx(ctx, db, second, "status", "approval_status")
	require.ErrorIs(t, err, accounts.ErrStaleAccount)
	assert.Equal(t, int64(0), second.Version)

	stored, err := repo.GetByUUIDTx(ctx, db, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.ApprovalApproved, stored.ApprovalStatus)
	assert.Equal(t, accounts.StatusActive, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestAccountsTrackSuccessfulLoginRotatesTimestamps(t *testing.T) {
	db := newTestDB(t)
	repo := accounts.NewAccountsRepository(db)
	ctx := context.Background()

	account := seedAccount(t, repo, "login@example.com")
	first := baseTime
	second := baseTime.Add(time.Hour)

	require.NoError(t, repo.TrackSuccessfulLogin(ctx, account, first))
	require.NoError(t, repo.TrackSuccessfulLogin(ctx, account, second))

	require.NotNil(t, account.PreviousLoginAt)
	assert.True(t, account.PreviousLoginAt.Equal(first))

	stored, err := repo.GetByUUIDTx(ctx, db, account.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLoginAt)
	require.NotNil(t, stored.PreviousLoginAt)
	assert.True(t, stored.LastLoginAt.Equal(second))
	assert.True(t, stored.PreviousLoginAt.Equal(first))
	assert.Equal(t, int64(0), stored.Version)
}

func TestAccountsGetByReapplyToken(t *testing.T) {
	db := newTestDB(t)
	repo := accounts.NewAccountsRepository(db)
	ctx := context.Background()

	account := seedAccount(t, repo, "token@example.com")
	expires := baseTime.Add(24 * time.Hour)
	account.ReapplyTokenHash = accounts.HashReapplyToken("raw-token")
	account.ReapplyTokenExpiresAt = &expires
	require.NoError(t, repo.UpdateVersionedTx(ctx, db, account, "reapply_token_hash", "reapply_token_expires_at"))

	found, err := repo.GetByReapplyTokenTx(ctx, db, " raw-token ")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = repo.GetByReapplyTokenTx(ctx, db, accounts.HashReapplyToken("raw-token"))
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestAuditLogsAppendOrder(t *testing.T) {
	db := newTestDB(t)
	mgr := accounts.NewRepositoryManager(db)
	ctx := context.Background()

	account := seedAccount(t, mgr.Accounts(), "audit@example.com")
	other := seedAccount(t, mgr.Accounts(), "other@example.com")
	actor := accounts.ActorRef{ID: "admin"}

	actions := []accounts.AuditAction{
		accounts.AuditActionInactivate,
		accounts.AuditActionReactivate,
		accounts.AuditActionInactivate,
	}
	for i, action := range actions {
		require.NoError(t, mgr.AuditLogs().Append(ctx,
			accounts.NewAuditLogEntry(account, action, actor, baseTime.Add(time.Duration(i)*time.Minute)),
		))
	}
	require.NoError(t, mgr.AuditLogs().Append(ctx,
		accounts.NewAuditLogEntry(other, accounts.AuditActionApprove, actor, baseTime),
	))

	entries, err := mgr.AuditLogs().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, actions[i], entry.Action)
		assert.Equal(t, account.ID, entry.AccountID)
		assert.Equal(t, "admin", entry.ActorID)
	}
	assert.Less(t, entries[0].ID, entries[1].ID)
	assert.Less(t, entries[1].ID, entries[2].ID)

	require.NoError(t, mgr.Validate())
}
