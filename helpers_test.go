package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSigningKey = "test-signing-key-0123456789abcdef"
	testPassword   = "correct-horse-battery"
	testPhone      = "+16502530000"
)

var baseTime = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// sequenceSecrets hands out predictable codes and tokens
type sequenceSecrets struct {
	mu     sync.Mutex
	codes  int
	tokens int
}

func (s *sequenceSecrets) VerificationCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes++
	return fmt.Sprintf("%06d", 100000+s.codes*111), nil
}

func (s *sequenceSecrets) ReapplyToken() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens++
	raw := fmt.Sprintf("reapply-token-%d", s.tokens)
	return raw, accounts.HashReapplyToken(raw), nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []accounts.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n accounts.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureNotifier) last(kind accounts.NotificationKind) (accounts.Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Kind == kind {
			return c.sent[i], true
		}
	}
	return accounts.Notification{}, false
}

func (c *captureNotifier) count(kind accounts.NotificationKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, item := range c.sent {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

type captureSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *captureSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) types() []accounts.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

type testEnv struct {
	db       *bun.DB
	repo     accounts.RepositoryManager
	config   *accounts.DefaultConfig
	clock    *testClock
	secrets  *sequenceSecrets
	notifier *captureNotifier
	sink     *captureSink
	hasher   *accounts.BcryptHasher
	cmds     *accounts.Commands
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, accounts.Migrate(context.Background(), db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:       newTestDB(t),
		clock:    newTestClock(baseTime),
		secrets:  &sequenceSecrets{},
		notifier: &captureNotifier{},
		sink:     &captureSink{},
		hasher:   accounts.NewBcryptHasher(bcrypt.MinCost),
	}

	env.config = accounts.NewDefaultConfig()
	env.config.SigningKey = testSigningKey

	env.repo = accounts.NewRepositoryManager(env.db, accounts.WithAccountsClock(env.clock.Now))
	env.cmds = accounts.NewCommands(env.repo,
		accounts.WithHandlerConfig(env.config),
		accounts.WithHandlerClock(env.clock.Now),
		accounts.WithHandlerPasswordHasher(env.hasher),
		accounts.WithHandlerSecretGenerator(env.secrets),
		accounts.WithHandlerNotifier(env.notifier),
		accounts.WithHandlerActivitySink(env.sink),
		accounts.WithHandlerLogger(accounts.NopLogger()),
	)
	return env
}

func (e *testEnv) ctx() context.Context {
	return context.Background()
}

func (e *testEnv) register(t *testing.T, email, role string) *accounts.Account {
	t.Helper()

	msg := accounts.RegisterAccountMessage{
		Email:    email,
		Password: testPassword,
		Name:     "Test Person",
		Phone:    testPhone,
		Role:     role,
	}
	if role == accounts.RolePractitioner {
		msg.ProfileURL = "https://example.com/profiles/test"
	}

	var out *accounts.Account
	msg.OnResponse = func(a *accounts.Account) { out = a }
	require.NoError(t, e.cmds.Register.Execute(e.ctx(), msg))
	require.NotNil(t, out)
	return out
}

func (e *testEnv) codeFor(t *testing.T, email string) string {
	t.Helper()
	account, err := e.repo.Accounts().GetByEmail(e.ctx(), email)
	require.NoError(t, err)
	require.NotEmpty(t, account.VerificationCode)
	return account.VerificationCode
}

func (e *testEnv) verify(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, e.cmds.VerifyEmail.Execute(e.ctx(), accounts.VerifyEmailMessage{
		Email: email,
		Code:  e.codeFor(t, email),
	}))
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *accounts.Account {
	t.Helper()
	account, err := e.repo.Accounts().GetByID(e.ctx(), id.String())
	require.NoError(t, err)
	return account
}

func (e *testEnv) admin(t *testing.T) (*accounts.Account, accounts.ActorRef) {
	t.Helper()
	admin, _, err := accounts.ProvisionSuperAdmin(e.ctx(), e.repo, e.hasher, accounts.SuperAdminSeed{
		Email:    "root@example.com",
		Password: testPassword,
		Name:     "Root Admin",
		Phone:    testPhone,
	})
	require.NoError(t, err)
	return admin, accounts.ActorRef{ID: admin.ID.String(), Type: accounts.RoleSuperAdmin}
}

func (e *testEnv) login(email, password string) (*accounts.LoginResponse, error) {
	var res *accounts.LoginResponse
	err := e.cmds.Login.Execute(e.ctx(), accounts.LoginMessage{
		Email:      email,
		Password:   password,
		OnResponse: func(r *accounts.LoginResponse) { res = r },
	})
	return res, err
}
