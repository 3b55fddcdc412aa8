package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the operational gate checked on login
type AccountStatus string

const (
	StatusPending  AccountStatus = "PENDING"
	StatusActive   AccountStatus = "ACTIVE"
	StatusInactive AccountStatus = "INACTIVE"
	StatusRejected AccountStatus = "REJECTED"
)

// IsValid reports whether s is a known status.
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusRejected:
		return true
	default:
		return false
	}
}

// ApprovalStatus tracks practitioner vetting. It is empty for every
// role other than RolePractitioner.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Name         string    `bun:"name,notnull" json:"name"`
	Phone        string    `bun:"phone_number,notnull" json:"phone_number"`
	Address      string    `bun:"address" json:"address,omitempty"`
	Role         Role      `bun:"role,notnull" json:"role"`
	ProfileURL   string    `bun:"profile_url" json:"profile_url,omitempty"`

	Status         AccountStatus  `bun:"status,notnull" json:"status"`
	ApprovalStatus ApprovalStatus `bun:"approval_status,nullzero" json:"approval_status,omitempty"`
	EmailVerified  bool           `bun:"is_email_verified,notnull,default:false" json:"is_email_verified"`

	VerificationCode          string     `bun:"verification_code,nullzero" json:"-"`
	VerificationCodeExpiresAt *time.Time `bun:"verification_code_expires_at,nullzero" json:"-"`
	ReapplyTokenHash          string     `bun:"reapply_token_hash,nullzero" json:"-"`
	ReapplyTokenExpiresAt     *time.Time `bun:"reapply_token_expires_at,nullzero" json:"-"`

	LastLoginAt       *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	PreviousLoginAt   *time.Time `bun:"previous_login_at,nullzero" json:"previous_login_at,omitempty"`
	PasswordChangedAt *time.Time `bun:"password_changed_at,nullzero" json:"password_changed_at,omitempty"`

	ApprovedAt         *time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	ApprovedBy         string     `bun:"approved_by,nullzero" json:"approved_by,omitempty"`
	RejectedAt         *time.Time `bun:"rejected_at,nullzero" json:"rejected_at,omitempty"`
	RejectedBy         string     `bun:"rejected_by,nullzero" json:"rejected_by,omitempty"`
	RejectionReason    string     `bun:"rejection_reason,nullzero" json:"rejection_reason,omitempty"`
	InactivatedAt      *time.Time `bun:"inactivated_at,nullzero" json:"inactivated_at,omitempty"`
	InactivatedBy      string     `bun:"inactivated_by,nullzero" json:"inactivated_by,omitempty"`
	InactivationReason string     `bun:"inactivation_reason,nullzero" json:"inactivation_reason,omitempty"`
	InactivationNote   string     `bun:"inactivation_note,nullzero" json:"inactivation_note,omitempty"`
	ReactivatedAt      *time.Time `bun:"reactivated_at,nullzero" json:"reactivated_at,omitempty"`
	ReactivatedBy      string     `bun:"reactivated_by,nullzero" json:"reactivated_by,omitempty"`
	ReactivationNote   string     `bun:"reactivation_note,nullzero" json:"reactivation_note,omitempty"`

	// Version is bumped on every guarded write, see Accounts.UpdateVersionedTx
	Version   int64      `bun:"version,notnull,default:0" json:"version"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsPractitioner returns true for practitioner accounts
func (a *Account) IsPractitioner() bool {
	return a != nil && a.Role == RolePractitioner
}

// IsSuperAdmin returns true for administrator accounts
func (a *Account) IsSuperAdmin() bool {
	return a != nil && a.Role == RoleSuperAdmin
}

// IsActive reports whether the operational status is ACTIVE.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == StatusActive
}

// IsInactive reports whether an administrator disabled the account.
func (a *Account) IsInactive() bool {
	return a != nil && a.Status == StatusInactive
}

// HasPendingCode reports whether a verification code is waiting to be consumed.
func (a *Account) HasPendingCode() bool {
	return a != nil && a.VerificationCode != "" && a.VerificationCodeExpiresAt != nil
}

// CodeIssuedAt derives when the current verification code was issued
// from its expiry and the configured TTL.
func (a *Account) CodeIssuedAt(ttl time.Duration) (time.Time, bool) {
	if a == nil || a.VerificationCodeExpiresAt == nil {
		return time.Time{}, false
	}
	return a.VerificationCodeExpiresAt.Add(-ttl), true
}

func (a *Account) clearVerificationCode() {
	a.VerificationCode = ""
	a.VerificationCodeExpiresAt = nil
}

func (a *Account) clearReapplyToken() {
	a.ReapplyTokenHash = ""
	a.ReapplyTokenExpiresAt = nil
}

// NormalizeEmail is the canonical representation used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AuditAction identifies an administrative action
type AuditAction = string

const (
	AuditActionInactivate AuditAction = "INACTIVATE_USER"
	AuditActionReactivate AuditAction = "REACTIVATE_USER"
	AuditActionApprove    AuditAction = "APPROVE_PRACTITIONER"
	AuditActionReject     AuditAction = "REJECT_PRACTITIONER"
)

// AuditLogEntry is an immutable record of an administrative action.
// ID is auto incremented and gives the append order.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:audit_logs,alias:aud"`

	ID        int64       `bun:"id,pk,autoincrement" json:"id"`
	AccountID uuid.UUID   `bun:"account_id,notnull,type:uuid" json:"account_id"`
	Email     string      `bun:"email,notnull" json:"email"`
	Role      Role        `bun:"role,notnull" json:"role"`
	Action    AuditAction `bun:"action,notnull" json:"action"`
	Reason    string      `bun:"reason,nullzero" json:"reason,omitempty"`
	Note      string      `bun:"note,nullzero" json:"note,omitempty"`
	ActorID   string      `bun:"actor_id,notnull" json:"actor_id"`
	CreatedAt time.Time   `bun:"created_at,notnull" json:"created_at"`
}

// NewAuditLogEntry builds an entry for the given account snapshot
func NewAuditLogEntry(account *Account, action AuditAction, actor ActorRef, at time.Time) *AuditLogEntry {
	return &AuditLogEntry{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Action:    action,
		ActorID:   actor.ID,
		CreatedAt: at,
	}
}
