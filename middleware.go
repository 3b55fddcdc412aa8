package accounts

import (
	"strings"

	"github.com/goliatone/go-router"
)

// PrincipalLocalsKey is where the session middleware stores the Principal
const PrincipalLocalsKey = "principal"

// TokenExtractor pulls a raw session token from the request
type TokenExtractor func(c router.Context) string

// TokenFromHeader reads "<scheme> <token>" from header
func TokenFromHeader(header, scheme string) TokenExtractor {
	scheme = strings.TrimSpace(scheme)
	return func(c router.Context) string {
		value := strings.TrimSpace(c.Header(header))
		l := len(scheme)
		if l == 0 || len(value) <= l+1 || !strings.EqualFold(value[:l], scheme) {
			return ""
		}
		return strings.TrimSpace(value[l:])
	}
}

// TokenFromCookie reads the token from the named cookie
func TokenFromCookie(name string) TokenExtractor {
	return func(c router.Context) string {
		return strings.TrimSpace(c.Cookies(name))
	}
}

// ExtractRawToken returns the first token found by extractors
func ExtractRawToken(c router.Context, extractors ...TokenExtractor) string {
	for _, extractor := range extractors {
		if extractor == nil {
			continue
		}
		if raw := extractor(c); raw != "" {
			return raw
		}
	}
	return ""
}

// GetPrincipal returns the principal stored by the session middleware
func GetPrincipal(c router.Context) (Principal, bool) {
	if p, ok := c.Locals(PrincipalLocalsKey).(Principal); ok && !p.IsZero() {
		return p, true
	}
	return PrincipalFromContext(c.Context())
}

// Protected authenticates the request and, when roles are given, checks
// the principal holds one of them. The account is reloaded on every
// request so inactivation takes effect immediately.
func (a *AccountController) Protected(roles ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			principal, err := a.authenticate(c)
			if err != nil {
				return a.ErrorHandler(c, err)
			}

			if len(roles) > 0 && !HasAnyRole(principal.Role, roles...) {
				a.Logger.Warn("role guard rejected request", "principal", principal.ID, "role", principal.Role)
				return a.ErrorHandler(c, ErrForbidden)
			}

			c.Locals(PrincipalLocalsKey, principal)
			c.SetContext(WithPrincipal(c.Context(), principal))
			return next(c)
		}
	}
}

func (a *AccountController) authenticate(c router.Context) (Principal, error) {
	raw := ExtractRawToken(c,
		TokenFromHeader("Authorization", "Bearer"),
		TokenFromCookie(a.Config.GetSessionCookieName()),
	)
	if raw == "" {
		return Principal{}, ErrUnauthenticated
	}

	claims, err := a.Sessions.Validate(raw)
	if err != nil {
		return Principal{}, err
	}

	principal := claims.Principal()
	account, err := a.Commands.lookupAccount(c.Context(), principal.ID)
	if err != nil {
		if TextCodeOf(err) == TextCodeAccountNotFound {
			return Principal{}, ErrUnauthenticated
		}
		return Principal{}, err
	}

	if err := a.Commands.machine.CanLogin(account); err != nil {
		return Principal{}, err
	}

	principal.Role = account.Role
	principal.Email = account.Email
	return principal, nil
}
