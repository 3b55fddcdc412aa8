package accounts_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(env *testEnv, opts ...accounts.AccountControllerOption) *accounts.AccountController {
	opts = append([]accounts.AccountControllerOption{
		accounts.WithControllerCommands(env.cmds),
		accounts.WithControllerConfig(env.config),
		accounts.WithControllerLogger(accounts.NopLogger()),
	}, opts...)
	return accounts.NewAccountController(opts...)
}

func captureErrors(handled *error) accounts.AccountControllerOption {
	return accounts.WithControllerErrorHandler(func(_ router.Context, err error) error {
		*handled = err
		return nil
	})
}

func adminPrincipal(admin *accounts.Account) accounts.Principal {
	return accounts.Principal{ID: admin.ID.String(), Role: accounts.RoleSuperAdmin, Email: admin.Email}
}

func TestProtectedRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	var handled error
	controller := newTestController(env, captureErrors(&handled))

	nextCalled := false
	handler := controller.Protected()(func(router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(newTestContext()))
	assert.False(t, nextCalled)
	assert.ErrorIs(t, handled, accounts.ErrUnauthenticated)
}

func TestProtectedRejectsForeignToken(t *testing.T) {
	env := newTestEnv(t)

	var handled error
	controller := newTestController(env, captureErrors(&handled))
	handler := controller.Protected()(func(router.Context) error {
		t.Fatal("next must not run")
		return nil
	})

	require.NoError(t, handler(newTestContext().bearer("definitely.not.valid")))
	assert.ErrorIs(t, handled, accounts.ErrUnauthenticated)
}

func TestProtectedEnforcesRoles(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "member@example.com", accounts.RoleUser)
	env.verify(t, "member@example.com")
	res, err := env.login("member@example.com", testPassword)
	require.NoError(t, err)

	var handled error
	controller := newTestController(env, captureErrors(&handled))
	handler := controller.Protected(accounts.RoleSuperAdmin)(func(router.Context) error {
		t.Fatal("next must not run")
		return nil
	})

	require.NoError(t, handler(newTestContext().bearer(res.Token)))
	assert.ErrorIs(t, handled, accounts.ErrForbidden)
}

func TestProtectedStoresPrincipal(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.admin(t)
	res, err := env.login("root@example.com", testPassword)
	require.NoError(t, err)

	controller := newTestController(env)

	var seen accounts.Principal
	handler := controller.Protected(accounts.RoleSuperAdmin)(func(c router.Context) error {
		p, ok := accounts.GetPrincipal(c)
		require.True(t, ok)
		seen = p
		return nil
	})

	ctx := newTestContext().bearer(res.Token)
	require.NoError(t, handler(ctx))

	assert.Equal(t, admin.ID.String(), seen.ID)
	assert.Equal(t, accounts.RoleSuperAdmin, seen.Role)
	assert.Equal(t, "root@example.com", seen.Email)

	fromCtx, ok := accounts.PrincipalFromContext(ctx.Context())
	require.True(t, ok)
	assert.Equal(t, seen, fromCtx)
}

func TestProtectedAcceptsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.admin(t)
	res, err := env.login("root@example.com", testPassword)
	require.NoError(t, err)

	controller := newTestController(env)

	nextCalled := false
	handler := controller.Protected()(func(router.Context) error {
		nextCalled = true
		return nil
	})

	ctx := newTestContext()
	ctx.cookies[env.config.GetSessionCookieName()] = res.Token
	require.NoError(t, handler(ctx))
	assert.True(t, nextCalled)
}

func TestProtectedReloadsAccountState(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.admin(t)
	member := env.register(t, "member@example.com", accounts.RoleUser)
	env.verify(t, "member@example.com")
	res, err := env.login("member@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, env.cmds.InactivateAccount.Execute(env.ctx(), accounts.InactivateAccountMessage{
		AccountID: member.ID.String(),
		Reason:    "Abuse report",
		Actor:     actor,
	}))

	var handled error
	controller := newTestController(env, captureErrors(&handled))
	handler := controller.Protected()(func(router.Context) error {
		t.Fatal("next must not run")
		return nil
	})

	require.NoError(t, handler(newTestContext().bearer(res.Token)))
	assert.ErrorIs(t, handled, accounts.ErrNotActive)
}

func TestLoginHandlerSetsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.admin(t)

	controller := newTestController(env)
	ctx := newTestContext().withJSON(map[string]string{
		"email":    "root@example.com",
		"password": testPassword,
	})

	require.NoError(t, controller.Login(ctx))
	assert.Equal(t, http.StatusOK, ctx.status)

	res, ok := ctx.view()["data"].(*accounts.LoginResponse)
	require.True(t, ok)
	require.Len(t, ctx.setCookies, 1)
	cookie := ctx.setCookies[0]
	assert.Equal(t, "token", cookie.Name)
	assert.Equal(t, res.Token, cookie.Value)
	assert.True(t, cookie.HTTPOnly)
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	controller := newTestController(env)

	ctx := newTestContext()
	require.NoError(t, controller.Logout(ctx))

	assert.Equal(t, http.StatusOK, ctx.status)
	require.Len(t, ctx.setCookies, 1)
	assert.Empty(t, ctx.setCookies[0].Value)
	assert.True(t, ctx.setCookies[0].Expires.Before(time.Now()))
}

func TestRegisterHandlerRejectsMissingBody(t *testing.T) {
	env := newTestEnv(t)

	var handled error
	controller := newTestController(env, captureErrors(&handled))

	require.NoError(t, controller.Register(newTestContext()))
	assert.Equal(t, accounts.TextCodeValidation, accounts.TextCodeOf(handled))
	assert.Equal(t, http.StatusBadRequest, accounts.HTTPStatusOf(handled))
}

func TestApproveHandler(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.admin(t)
	doc := env.register(t, "doc@example.com", accounts.RolePractitioner)
	env.verify(t, "doc@example.com")

	controller := newTestController(env)

	ctx := newTestContext().principal(adminPrincipal(admin))
	ctx.params["id"] = doc.ID.String()

	require.NoError(t, controller.Approve(ctx))
	assert.Equal(t, http.StatusOK, ctx.status)

	body := ctx.view()
	assert.Equal(t, true, body["success"])
	account, ok := body["data"].(*accounts.Account)
	require.True(t, ok)
	assert.Equal(t, accounts.ApprovalApproved, account.ApprovalStatus)
	assert.Equal(t, admin.ID.String(), account.ApprovedBy)
}

func TestApproveHandlerRendersDomainErrors(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.admin(t)
	user := env.register(t, "plain@example.com", accounts.RoleUser)

	controller := newTestController(env)

	ctx := newTestContext().principal(adminPrincipal(admin))
	ctx.params["id"] = user.ID.String()

	require.NoError(t, controller.Approve(ctx))
	assert.Equal(t, http.StatusBadRequest, ctx.status)

	body := ctx.view()
	assert.Equal(t, false, body["success"])
	errBody, ok := body["error"].(router.ViewContext)
	require.True(t, ok)
	assert.Equal(t, accounts.TextCodeRoleMismatch, errBody["text_code"])
}

func TestApproveHandlerRequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)

	var handled error
	controller := newTestController(env, captureErrors(&handled))

	require.NoError(t, controller.Approve(newTestContext()))
	assert.ErrorIs(t, handled, accounts.ErrUnauthenticated)
}

func TestReactivateHandlerAcceptsEmptyBody(t *testing.T) {
	env := newTestEnv(t)
	admin, actor := env.admin(t)
	member := env.register(t, "member@example.com", accounts.RoleUser)

	require.NoError(t, env.cmds.InactivateAccount.Execute(env.ctx(), accounts.InactivateAccountMessage{
		AccountID: member.ID.String(),
		Reason:    "Chargeback",
		Actor:     actor,
	}))

	controller := newTestController(env)

	ctx := newTestContext().principal(adminPrincipal(admin))
	ctx.params["id"] = member.ID.String()

	require.NoError(t, controller.Reactivate(ctx))
	assert.Equal(t, http.StatusOK, ctx.status)

	account, ok := ctx.view()["data"].(*accounts.Account)
	require.True(t, ok)
	assert.Equal(t, accounts.StatusActive, account.Status)
	assert.Empty(t, account.ReactivationNote)
}

func TestReactivateHandlerBindsNote(t *testing.T) {
	env := newTestEnv(t)
	admin, actor := env.admin(t)
	member := env.register(t, "member@example.com", accounts.RoleUser)

	require.NoError(t, env.cmds.InactivateAccount.Execute(env.ctx(), accounts.InactivateAccountMessage{
		AccountID: member.ID.String(),
		Reason:    "Chargeback",
		Actor:     actor,
	}))

	controller := newTestController(env)

	ctx := newTestContext().principal(adminPrincipal(admin)).withJSON(map[string]string{"note": "Refund settled"})
	ctx.params["id"] = member.ID.String()

	require.NoError(t, controller.Reactivate(ctx))
	assert.Equal(t, http.StatusOK, ctx.status)
	assert.Equal(t, "Refund settled", env.reload(t, member.ID).ReactivationNote)
}

func TestInactivateHandlerWithoutBodyReportsReason(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.admin(t)
	member := env.register(t, "member@example.com", accounts.RoleUser)

	var handled error
	controller := newTestController(env, captureErrors(&handled))

	ctx := newTestContext().principal(adminPrincipal(admin))
	ctx.params["id"] = member.ID.String()

	require.NoError(t, controller.Inactivate(ctx))
	require.Error(t, handled)
	assert.True(t, accounts.IsValidationError(handled))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(handled, &richErr))
	assert.Contains(t, richErr.ValidationMap(), "reason")
}

func TestAuditTrailHandler(t *testing.T) {
	env := newTestEnv(t)
	_, actor := env.admin(t)
	member := env.register(t, "member@example.com", accounts.RoleUser)

	require.NoError(t, env.cmds.InactivateAccount.Execute(env.ctx(), accounts.InactivateAccountMessage{
		AccountID: member.ID.String(),
		Reason:    "Chargeback",
		Actor:     actor,
	}))

	controller := newTestController(env)

	ctx := newTestContext()
	ctx.params["id"] = member.ID.String()

	require.NoError(t, controller.AuditTrail(ctx))

	entries, ok := ctx.view()["data"].([]*accounts.AuditLogEntry)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.Equal(t, accounts.AuditActionInactivate, entries[0].Action)
	assert.Equal(t, "Chargeback", entries[0].Reason)
}

func TestProfileShowHandler(t *testing.T) {
	env := newTestEnv(t)
	member := env.register(t, "member@example.com", accounts.RoleUser)

	controller := newTestController(env)

	ctx := newTestContext().principal(accounts.Principal{ID: member.ID.String(), Role: accounts.RoleUser})

	require.NoError(t, controller.ProfileShow(ctx))

	profile, ok := ctx.view()["data"].(accounts.Profile)
	require.True(t, ok)
	assert.Equal(t, "member@example.com", profile.Email)
	assert.Equal(t, accounts.StatusActive, profile.Status)
	assert.False(t, profile.EmailVerified)
}

func TestErrorBody(t *testing.T) {
	t.Run("domain error", func(t *testing.T) {
		body := accounts.ErrorBody(accounts.ErrTooManyRequests)
		assert.Equal(t, false, body["success"])

		errBody := body["error"].(router.ViewContext)
		assert.Equal(t, http.StatusTooManyRequests, errBody["code"])
		assert.Equal(t, accounts.TextCodeTooManyRequests, errBody["text_code"])
		assert.NotContains(t, errBody, "validation")
	})

	t.Run("validation error", func(t *testing.T) {
		var richErr *goerrors.Error
		require.True(t, goerrors.As(accounts.LoginMessage{}.Validate(), &richErr))

		errBody := accounts.ErrorBody(richErr)["error"].(router.ViewContext)
		assert.Equal(t, accounts.TextCodeValidation, errBody["text_code"])
		assert.Contains(t, errBody, "validation")
	})

	t.Run("internal error hides details", func(t *testing.T) {
		richErr := goerrors.Wrap(errors.New("pq: connection refused"), goerrors.CategoryInternal, "lookup failed")

		errBody := accounts.ErrorBody(richErr)["error"].(router.ViewContext)
		assert.Equal(t, "An unexpected server error occurred", errBody["message"])
	})
}
