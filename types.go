package accounts

import (
	"fmt"
	"strings"
	"time"
)

// Logger is the logging contract used across the package. It matches
// the structured loggers returned by go-logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds account lifecycle options
type Config interface {
	GetVerificationCodeTTL() time.Duration
	GetResendCooldown() time.Duration
	GetReapplyTokenTTL() time.Duration
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetSessionCookieName() string
	GetPhoneRegion() string
}

// PasswordHasher hashes and compares secrets
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// SessionIssuer mints the opaque session token handed out on login
type SessionIssuer interface {
	Issue(account *Account) (string, error)
}

// SessionValidator decodes a session token into its claims
type SessionValidator interface {
	Validate(token string) (*SessionClaims, error)
}

// Clock returns the current time
type Clock func() time.Time

// ActorRef identifies who performed an operation
type ActorRef struct {
	ID   string
	Type string
}

// SystemActor is used for self service operations
func SystemActor() ActorRef {
	return ActorRef{ID: "system", Type: "system"}
}

// SelfActor is used when the account owner acts on its own account
func SelfActor(account *Account) ActorRef {
	if account == nil {
		return SystemActor()
	}
	return ActorRef{ID: account.ID.String(), Type: account.Role}
}

// PrincipalActor maps the authenticated caller to an actor reference
func PrincipalActor(p Principal) ActorRef {
	return ActorRef{ID: p.ID, Type: p.Role}
}

// Principal is the authenticated caller attached to a request
type Principal struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email"`
}

// IsZero reports whether no principal was resolved
func (p Principal) IsZero() bool {
	return p.ID == ""
}

// DefaultConfig holds sensible defaults for every option
type DefaultConfig struct {
	VerificationCodeTTL time.Duration
	ResendCooldown      time.Duration
	ReapplyTokenTTL     time.Duration
	SigningKey          string
	TokenExpiration     int
	Issuer              string
	Audience            []string
	SessionCookieName   string
	PhoneRegion         string
}

// NewDefaultConfig returns the defaults, the signing key must still be set
func NewDefaultConfig() *DefaultConfig {
	return &DefaultConfig{
		VerificationCodeTTL: 10 * time.Minute,
		ResendCooldown:      60 * time.Second,
		ReapplyTokenTTL:     24 * time.Hour,
		TokenExpiration:     24,
		Issuer:              "go-accounts",
		Audience:            []string{"go-accounts:api"},
		SessionCookieName:   "token",
		PhoneRegion:         "US",
	}
}

func (c *DefaultConfig) GetVerificationCodeTTL() time.Duration { return c.VerificationCodeTTL }
func (c *DefaultConfig) GetResendCooldown() time.Duration      { return c.ResendCooldown }
func (c *DefaultConfig) GetReapplyTokenTTL() time.Duration     { return c.ReapplyTokenTTL }
func (c *DefaultConfig) GetSigningKey() string                 { return c.SigningKey }
func (c *DefaultConfig) GetTokenExpiration() int               { return c.TokenExpiration }
func (c *DefaultConfig) GetIssuer() string                     { return c.Issuer }
func (c *DefaultConfig) GetAudience() []string                 { return c.Audience }
func (c *DefaultConfig) GetSessionCookieName() string          { return c.SessionCookieName }
func (c *DefaultConfig) GetPhoneRegion() string                { return c.PhoneRegion }

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args...) }

func (d defLogger) print(level, msg string, args ...any) {
	var b strings.Builder
	b.WriteString("[" + level + "] ACCOUNTS ")
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&b, " %v", args[len(args)-1])
	}
	fmt.Println(b.String())
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything
func NopLogger() Logger { return nopLogger{} }

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func normalizeClock(c Clock) Clock {
	if c == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return c
}
