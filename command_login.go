package accounts

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

type LoginMessage struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`

	OnResponse func(*LoginResponse) `json:"-"`
}

func (e LoginMessage) Type() string { return "account.login" }

func (e LoginMessage) Validate() error {
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required),
			validation.Field(&e.Password, validation.Required),
		)
	}, "Invalid login payload")
}

// LoginResponse is delivered on successful login
type LoginResponse struct {
	Token   string   `json:"token"`
	Account *Account `json:"user"`
}

// burner is implemented by hashers that can equalize the cost of an
// unknown email lookup.
type burner interface {
	BurnCompare(password string)
}

// LoginHandler authenticates credentials and applies the login gate
type LoginHandler struct {
	handlerDeps
}

func NewLoginHandler(repo RepositoryManager, opts ...HandlerOption) *LoginHandler {
	return &LoginHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	if err := cancelled(ctx, "login"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	if err := event.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	account, err := h.repo.Accounts().GetByEmail(ctx, event.Email)
	if err != nil {
		if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account")
		}
		if b, ok := h.hasher.(burner); ok {
			b.BurnCompare(event.Password)
		}
		h.loginFailed(ctx, nil, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := h.hasher.ComparePasswordAndHash(event.Password, account.PasswordHash); err != nil {
		h.loginFailed(ctx, account, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if err := h.machine.CanLogin(account); err != nil {
		h.loginFailed(ctx, account, err)
		return err
	}

	now := h.now()
	if err := h.repo.Accounts().TrackSuccessfulLogin(ctx, account, now); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record login")
	}

	token, err := h.sessions.Issue(account)
	if err != nil {
		return asRichError(err, "failed to issue session")
	}

	h.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		Actor:      SelfActor(account),
		AccountID:  account.ID.String(),
		OccurredAt: now,
	})

	if event.OnResponse != nil {
		event.OnResponse(&LoginResponse{Token: token, Account: account})
	}

	return nil
}

func (h *LoginHandler) loginFailed(ctx context.Context, account *Account, reason error) {
	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Metadata: map[string]any{
			"reason": TextCodeOf(reason),
		},
	}
	if account != nil {
		event.Actor = SelfActor(account)
		event.AccountID = account.ID.String()
	}
	h.record(ctx, event)
}
