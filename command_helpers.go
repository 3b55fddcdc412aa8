package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	commandTimeout        = 10 * time.Second
	maxTransitionAttempts = 3
)

// HandlerOption configures the dependencies shared by command handlers
type HandlerOption func(*handlerDeps)

type handlerDeps struct {
	repo     RepositoryManager
	config   Config
	clock    Clock
	hasher   PasswordHasher
	secrets  SecretGenerator
	notifier Notifier
	activity ActivitySink
	logger   Logger
	sessions SessionIssuer
	machine  AccountStateMachine
}

func WithHandlerConfig(cfg Config) HandlerOption {
	return func(d *handlerDeps) {
		if cfg != nil {
			d.config = cfg
		}
	}
}

func WithHandlerClock(clock Clock) HandlerOption {
	return func(d *handlerDeps) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func WithHandlerPasswordHasher(hasher PasswordHasher) HandlerOption {
	return func(d *handlerDeps) {
		if hasher != nil {
			d.hasher = hasher
		}
	}
}

func WithHandlerSecretGenerator(secrets SecretGenerator) HandlerOption {
	return func(d *handlerDeps) {
		if secrets != nil {
			d.secrets = secrets
		}
	}
}

func WithHandlerNotifier(n Notifier) HandlerOption {
	return func(d *handlerDeps) {
		d.notifier = normalizeNotifier(n)
	}
}

func WithHandlerActivitySink(sink ActivitySink) HandlerOption {
	return func(d *handlerDeps) {
		d.activity = normalizeActivitySink(sink)
	}
}

func WithHandlerLogger(logger Logger) HandlerOption {
	return func(d *handlerDeps) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithHandlerSessionIssuer(issuer SessionIssuer) HandlerOption {
	return func(d *handlerDeps) {
		if issuer != nil {
			d.sessions = issuer
		}
	}
}

// WithHandlerStateMachine replaces the state machine built from the other options
func WithHandlerStateMachine(sm AccountStateMachine) HandlerOption {
	return func(d *handlerDeps) {
		if sm != nil {
			d.machine = sm
		}
	}
}

func newHandlerDeps(repo RepositoryManager, opts ...HandlerOption) handlerDeps {
	d := handlerDeps{
		repo:     repo,
		config:   NewDefaultConfig(),
		clock:    normalizeClock(nil),
		secrets:  NewSecretGenerator(),
		notifier: noopNotifier{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	if d.hasher == nil {
		d.hasher = NewBcryptHasher(0)
	}
	if d.sessions == nil {
		d.sessions = NewTokenService(d.config, WithTokenServiceClock(d.clock), WithTokenServiceLogger(d.logger))
	}
	if d.machine == nil && repo != nil {
		d.machine = NewAccountStateMachine(repo.Accounts(),
			WithStateMachineClock(d.clock),
			WithStateMachineActivitySink(d.activity),
			WithStateMachineLogger(d.logger),
		)
	}
	return d
}

func (d handlerDeps) now() time.Time {
	return d.clock()
}

func (d handlerDeps) record(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, d.activity, d.logger, d.clock, event)
}

func (d handlerDeps) notify(ctx context.Context, n Notification) {
	if err := normalizeNotifier(d.notifier).Notify(ctx, n); err != nil {
		d.logger.Error("notification dispatch failed", "kind", n.Kind, "to", n.To, "error", err)
	}
}

// runGuarded runs fn in a transaction and starts over when a guarded
// write lost a race, so fn always decides on the latest stored state.
func (d handlerDeps) runGuarded(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		err = d.repo.RunInTx(ctx, nil, fn)
		if !errors.Is(err, ErrStaleAccount) {
			return err
		}
		d.logger.Debug("guarded account write lost race, retrying", "attempt", attempt+1)
	}
	return err
}

func cancelled(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during "+operation,
		)
	default:
		return nil
	}
}

func (d handlerDeps) accountByID(ctx context.Context, tx bun.IDB, id string) (*Account, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrAccountNotFound
	}
	account, err := d.repo.Accounts().GetByUUIDTx(ctx, tx, uid)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
	}
	return account, nil
}

// lookupAccount reads outside of a transaction
func (d handlerDeps) lookupAccount(ctx context.Context, id string) (*Account, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrAccountNotFound
	}
	account, err := d.repo.Accounts().GetByID(ctx, uid.String())
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
	}
	return account, nil
}

func (d handlerDeps) accountByEmail(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	account, err := d.repo.Accounts().GetByEmailTx(ctx, tx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
	}
	return account, nil
}

func isNotFound(err error) bool {
	return goerrors.IsNotFound(err) || repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows)
}

func validateMessage(fn func() error, message string) error {
	if err := goerrors.ValidateWithOzzo(fn, message); err != nil {
		return err.WithTextCode(TextCodeValidation).WithCode(goerrors.CodeBadRequest)
	}
	return nil
}
