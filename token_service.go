package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SessionClaims are the claims carried by a session token
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Principal maps the claims to the request principal
func (c *SessionClaims) Principal() Principal {
	id := c.UID
	if id == "" {
		id = c.Subject
	}
	return Principal{ID: id, Role: c.UserRole, Email: c.Email}
}

// TokenService issues and validates HS256 session tokens
type TokenService struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	clock           Clock
	logger          Logger
}

var (
	_ SessionIssuer    = (*TokenService)(nil)
	_ SessionValidator = (*TokenService)(nil)
)

// TokenServiceOption configures the token service
type TokenServiceOption func(*TokenService)

func WithTokenServiceClock(clock Clock) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.clock = clock
		}
	}
}

func WithTokenServiceLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey:      []byte(cfg.GetSigningKey()),
		tokenExpiration: cfg.GetTokenExpiration(),
		issuer:          cfg.GetIssuer(),
		audience:        jwt.ClaimStrings(cfg.GetAudience()),
		clock:           normalizeClock(nil),
		logger:          defLogger{},
	}
	if ts.tokenExpiration <= 0 {
		ts.tokenExpiration = 24
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// Issue creates a session token for account
func (ts *TokenService) Issue(account *Account) (string, error) {
	if account == nil {
		return "", goerrors.New("account must not be nil", goerrors.CategoryInternal)
	}

	if len(ts.signingKey) == 0 {
		return "", goerrors.New("session signing key is not configured", goerrors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithCode(goerrors.CodeInternal)
	}

	now := ts.clock()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.TTL())),
		},
		UID:      account.ID.String(),
		UserRole: account.Role,
		Email:    account.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}
	return signed, nil
}

// TTL is the session lifetime
func (ts *TokenService) TTL() time.Duration {
	return time.Duration(ts.tokenExpiration) * time.Hour
}

// Validate parses and validates a token string
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrUnauthenticated
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrUnauthenticated
}
