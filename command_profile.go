package accounts

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"
)

// Profile is the self service view of an account
type Profile struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone_number"`
	Address        string         `json:"address,omitempty"`
	Role           Role           `json:"role"`
	Status         AccountStatus  `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approval_status,omitempty"`
	ProfileURL     string         `json:"profile_url,omitempty"`
	EmailVerified  bool           `json:"is_email_verified"`
	LastLogin      *time.Time     `json:"last_login,omitempty"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
}

// NewProfile builds the profile view. LastLogin is the login before the
// current session, not the one that created it.
func NewProfile(a *Account) Profile {
	return Profile{
		ID:             a.ID.String(),
		Name:           a.Name,
		Email:          a.Email,
		Phone:          a.Phone,
		Address:        a.Address,
		Role:           a.Role,
		Status:         a.Status,
		ApprovalStatus: a.ApprovalStatus,
		ProfileURL:     a.ProfileURL,
		EmailVerified:  a.EmailVerified,
		LastLogin:      a.PreviousLoginAt,
		CreatedAt:      a.CreatedAt,
	}
}

// GetProfileHandler loads the profile of the calling account
type GetProfileHandler struct {
	handlerDeps
}

func NewGetProfileHandler(repo RepositoryManager, opts ...HandlerOption) *GetProfileHandler {
	return &GetProfileHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *GetProfileHandler) Query(ctx context.Context, accountID string) (Profile, error) {
	if err := cancelled(ctx, "profile lookup"); err != nil {
		return Profile{}, err
	}
	account, err := h.lookupAccount(ctx, accountID)
	if err != nil {
		return Profile{}, asRichError(err, "profile lookup failed")
	}
	return NewProfile(account), nil
}

type UpdateProfileMessage struct {
	AccountID string `json:"-"`
	Name      string `json:"name" form:"name"`
	Phone     string `json:"phone_number" form:"phone_number"`
	Address   string `json:"address" form:"address"`

	OnResponse func(Profile) `json:"-"`
}

func (e UpdateProfileMessage) Type() string { return "account.profile.update" }

func (e UpdateProfileMessage) Validate(region string) error {
	return validateMessage(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Name, validation.By(trimmedLength(2, 100))),
			validation.Field(&e.Phone, validation.Required, validation.By(phoneRule(region))),
			validation.Field(&e.Address, validation.Length(0, 500)),
		)
	}, "Invalid profile payload")
}

type UpdateProfileHandler struct {
	handlerDeps
}

func NewUpdateProfileHandler(repo RepositoryManager, opts ...HandlerOption) *UpdateProfileHandler {
	return &UpdateProfileHandler{handlerDeps: newHandlerDeps(repo, opts...)}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	if err := cancelled(ctx, "profile update"); err != nil {
		return err
	}
	return h.execute(ctx, event)
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	region := h.config.GetPhoneRegion()
	if err := event.Validate(region); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	phone, _ := NormalizePhone(event.Phone, region)

	var account *Account
	err := h.runGuarded(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = h.accountByID(ctx, tx, event.AccountID); err != nil {
			return err
		}

		account.Name = strings.TrimSpace(event.Name)
		account.Phone = phone
		account.Address = strings.TrimSpace(event.Address)
		return h.repo.Accounts().UpdateVersionedTx(ctx, tx, account, "name", "phone_number", "address")
	})

	if err != nil {
		return asRichError(err, "profile update transaction failed")
	}

	h.record(ctx, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		Actor:     SelfActor(account),
		AccountID: account.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(NewProfile(account))
	}

	return nil
}
