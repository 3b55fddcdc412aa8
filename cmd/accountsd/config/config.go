package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/notify"
)

// BaseConfig is loaded from config/app.json, environment overrides apply.
type BaseConfig struct {
	App         App               `koanf:"app" json:"app"`
	Accounts    Accounts          `koanf:"accounts" json:"accounts"`
	Persistence Persistence       `koanf:"persistence" json:"persistence"`
	Redis       Redis             `koanf:"redis" json:"redis"`
	SMTP        notify.SMTPConfig `koanf:"smtp" json:"smtp"`
	Admin       Admin             `koanf:"admin" json:"admin"`
}

type App struct {
	Name  string `koanf:"name" json:"name"`
	Addr  string `koanf:"addr" json:"addr"`
	Debug bool   `koanf:"debug" json:"debug"`
}

type Accounts struct {
	VerificationCodeTTLExpression string   `koanf:"verification_code_ttl" json:"verification_code_ttl"`
	ResendCooldownExpression      string   `koanf:"resend_cooldown" json:"resend_cooldown"`
	ReapplyTokenTTLExpression     string   `koanf:"reapply_token_ttl" json:"reapply_token_ttl"`
	SigningKey                    string   `koanf:"signing_key" json:"signing_key"`
	TokenExpiration               int      `koanf:"token_expiration" json:"token_expiration"`
	Issuer                        string   `koanf:"issuer" json:"issuer"`
	Audience                      []string `koanf:"audience" json:"audience"`
	SessionCookieName             string   `koanf:"session_cookie_name" json:"session_cookie_name"`
	PhoneRegion                   string   `koanf:"phone_region" json:"phone_region"`
}

type Persistence struct {
	Driver                string `koanf:"driver" json:"driver"`
	DSN                   string `koanf:"dsn" json:"dsn"`
	Debug                 bool   `koanf:"debug" json:"debug"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
}

type Redis struct {
	Addr     string `koanf:"addr" json:"addr"`
	Password string `koanf:"password" json:"password"`
	DB       int    `koanf:"db" json:"db"`
	Stream   string `koanf:"stream" json:"stream"`
	MaxLen   int64  `koanf:"max_len" json:"max_len"`
}

// Admin seeds the super admin account on start when Email is set.
type Admin struct {
	Email    string `koanf:"email" json:"email"`
	Password string `koanf:"password" json:"password"`
	Name     string `koanf:"name" json:"name"`
	Phone    string `koanf:"phone_number" json:"phone_number"`
}

func (c BaseConfig) Validate() error {
	return validation.Errors{
		"accounts":    c.Accounts.Validate(),
		"persistence": c.Persistence.Validate(),
	}.Filter()
}

func (c *BaseConfig) GetAccounts() *Accounts       { return &c.Accounts }
func (c *BaseConfig) GetPersistence() *Persistence { return &c.Persistence }

func (a Accounts) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&a.VerificationCodeTTLExpression, validation.By(durationRule)),
		validation.Field(&a.ResendCooldownExpression, validation.By(durationRule)),
		validation.Field(&a.ReapplyTokenTTLExpression, validation.By(durationRule)),
	)
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.PingTimeoutExpression, validation.By(durationRule)),
	)
}

func durationRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	return nil
}

func parseDuration(expr string, def time.Duration) time.Duration {
	if expr == "" {
		return def
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(fmt.Sprintf("unable to parse time: expr %s", expr))
	}
	return dur
}

func (p Persistence) GetPingTimeout() time.Duration {
	return parseDuration(p.PingTimeoutExpression, 5*time.Second)
}

var defaults = accounts.NewDefaultConfig()

func (a *Accounts) GetVerificationCodeTTL() time.Duration {
	return parseDuration(a.VerificationCodeTTLExpression, defaults.VerificationCodeTTL)
}

func (a *Accounts) GetResendCooldown() time.Duration {
	return parseDuration(a.ResendCooldownExpression, defaults.ResendCooldown)
}

func (a *Accounts) GetReapplyTokenTTL() time.Duration {
	return parseDuration(a.ReapplyTokenTTLExpression, defaults.ReapplyTokenTTL)
}

func (a *Accounts) GetSigningKey() string { return a.SigningKey }

func (a *Accounts) GetTokenExpiration() int {
	if a.TokenExpiration <= 0 {
		return defaults.TokenExpiration
	}
	return a.TokenExpiration
}

func (a *Accounts) GetIssuer() string {
	if a.Issuer == "" {
		return defaults.Issuer
	}
	return a.Issuer
}

func (a *Accounts) GetAudience() []string {
	if len(a.Audience) == 0 {
		return defaults.Audience
	}
	return a.Audience
}

func (a *Accounts) GetSessionCookieName() string {
	if a.SessionCookieName == "" {
		return defaults.SessionCookieName
	}
	return a.SessionCookieName
}

func (a *Accounts) GetPhoneRegion() string {
	if a.PhoneRegion == "" {
		return defaults.PhoneRegion
	}
	return a.PhoneRegion
}

var _ accounts.Config = (*Accounts)(nil)
