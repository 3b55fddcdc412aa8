package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

type RegisterAccountMessage struct {
	Email      string `json:"email" form:"email"`
	Password   string `json:"password" form:"password"`
	Name       string `json:"name" form:"name"`
	Phone      string `json:"phone_number" form:"phone_number"`
	Address    string `json:"address" form:"address"`
	Role       string `json:"role" form:"role"`
	ProfileURL string `json:"profile_url" form:"profile_url"`
	UseHashid  bool   `json:"-"`

	OnResponse func(*Account) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate will run validation rules. Phone numbers are checked
// against region when they carry no country prefix.
func (e RegisterAccountMessage) Validate(region string) error {
	e.Email = strings.TrimSpace(e.Email)
	e.ProfileURL = strings.TrimSpace(e.ProfileURL)

	profileRules := []validation.Rule{is.URL}
	if e.Role == RolePractitioner {
		profileRules = append([]validation.Rule{validation.Required}, profileRules...)
	}

	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Email, validation.Required, is.Email),
			validation.Field(&e.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
			validation.Field(&e.Name, validation.By(trimmedLength(2, 100))),
			validation.Field(&e.Phone, validation.Required, validation.By(phoneRule(region))),
			validation.Field(&e.Role, validation.Required, validation.In(RegistrableRoles()...)),
			validation.Field(&e.ProfileURL, profileRules...),
		)
	}, "Invalid registration payload")
}

type RegisterAccountHandler struct {
	handlerDeps
}

func NewRegisterAccountHandler(repo RepositoryManager, opts ...HandlerOption) *RegisterAccountHandler {
	return &RegisterAccountHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := cancelled(ctx, "account registration"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	region := h.config.GetPhoneRegion()
	if err := event.Validate(region); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	code, err := h.secrets.VerificationCode()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	phone, err := NormalizePhone(event.Phone, region)
	if err != nil {
		return validateMessage(func() error {
			return validation.Errors{"phone_number": err}
		}, "Invalid registration payload")
	}
	now := h.now()

	account := &Account{
		Email:                     NormalizeEmail(event.Email),
		PasswordHash:              hash,
		Name:                      strings.TrimSpace(event.Name),
		Phone:                     phone,
		Address:                   strings.TrimSpace(event.Address),
		Role:                      event.Role,
		VerificationCode:          code,
		VerificationCodeExpiresAt: timePtr(now.Add(h.config.GetVerificationCodeTTL())),
	}

	if account.IsPractitioner() {
		account.Status = StatusPending
		account.ApprovalStatus = ApprovalPending
		account.ProfileURL = strings.TrimSpace(event.ProfileURL)
	} else {
		account.Status = StatusActive
	}

	if event.UseHashid {
		id, err := hashid.NewUUID(account.Email)
		if err != nil {
			h.logger.Warn("hashid generation failed, using random id", "email", account.Email, "error", err)
		} else {
			account.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().GetByEmailTx(ctx, tx, account.Email); err == nil {
			return ErrEmailTaken
		} else if !isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not check email availability")
		}

		if account, err = h.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		return asRichError(err, "account registration transaction failed")
	}

	h.logger.Info("account registered", "id", account.ID, "role", account.Role)

	h.notify(ctx, newNotification(NotificationVerificationCode, account, map[string]any{
		"code":       code,
		"expires_in": h.config.GetVerificationCodeTTL().String(),
	}))

	h.record(ctx, ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		Actor:      SelfActor(account),
		AccountID:  account.ID.String(),
		ToStatus:   account.Status,
		ToApproval: account.ApprovalStatus,
		Metadata: map[string]any{
			"role": account.Role,
		},
		OccurredAt: now,
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

func trimmedLength(min, max int) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		n := len([]rune(strings.TrimSpace(s)))
		if n == 0 {
			return errors.New("cannot be blank")
		}
		if n < min || n > max {
			return fmt.Errorf("the length must be between %d and %d", min, max)
		}
		return nil
	}
}
