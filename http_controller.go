package accounts

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAccountRoutes mounts the account API on app
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)
	routes := controller.Routes

	auth := app.Group(routes.Auth)
	auth.Post("/register", controller.Register).SetName("auth.register")
	auth.Post("/login", controller.Login).SetName("auth.login")
	auth.Post("/logout", controller.Logout, controller.Protected()).SetName("auth.logout")
	auth.Post("/verify-token-otp", controller.VerifyEmail).SetName("auth.verify")
	auth.Post("/resend-token-otp", controller.ResendCode).SetName("auth.resend")
	auth.Post("/reapply", controller.Reapply).SetName("auth.reapply")
	auth.Post("/change-password", controller.ChangePassword, controller.Protected()).SetName("auth.change-password")

	users := app.Group(routes.Users)
	users.Get("/profile", controller.ProfileShow, controller.Protected()).SetName("users.profile.get")
	users.Put("/profile", controller.ProfileUpdate, controller.Protected()).SetName("users.profile.put")

	admin := app.Group(routes.Admin)
	superAdmin := controller.Protected(RoleSuperAdmin)
	admin.Post("/approve/:id", controller.Approve, superAdmin).SetName("admin.practitioners.approve")
	admin.Post("/reject/:id", controller.Reject, superAdmin).SetName("admin.practitioners.reject")
	admin.Patch("/:id/inactivate", controller.Inactivate, superAdmin).SetName("admin.practitioners.inactivate")
	admin.Patch("/:id/reactivate", controller.Reactivate, superAdmin).SetName("admin.practitioners.reactivate")
	admin.Get("/:id/audit", controller.AuditTrail, superAdmin).SetName("admin.practitioners.audit")

	return controller
}

type AccountControllerRoutes struct {
	Auth  string
	Users string
	Admin string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Config       Config
	Routes       *AccountControllerRoutes
	Sessions     SessionValidator
	Commands     *Commands
	ErrorHandler func(router.Context, error) error

	handlerOptions []HandlerOption
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerRepository(repo RepositoryManager) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		a.Repo = repo
		return a
	}
}

func WithControllerConfig(cfg Config) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		if cfg != nil {
			a.Config = cfg
		}
		return a
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		if logger != nil {
			a.Logger = logger
		}
		return a
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		a.Debug = debug
		return a
	}
}

func WithControllerSessionValidator(v SessionValidator) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		a.Sessions = v
		return a
	}
}

func WithControllerErrorHandler(h func(router.Context, error) error) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		if h != nil {
			a.ErrorHandler = h
		}
		return a
	}
}

// WithControllerHandlerOptions forwards options to the command handlers
func WithControllerHandlerOptions(opts ...HandlerOption) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		a.handlerOptions = append(a.handlerOptions, opts...)
		return a
	}
}

// WithControllerCommands uses prebuilt commands instead of building them
func WithControllerCommands(cmds *Commands) AccountControllerOption {
	return func(a *AccountController) *AccountController {
		a.Commands = cmds
		return a
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Config: NewDefaultConfig(),
		Routes: &AccountControllerRoutes{
			Auth:  "/api/auth",
			Users: "/api/users",
			Admin: "/api/admin/practitioners",
		},
	}
	c.ErrorHandler = c.respondError

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Commands == nil {
		if c.Repo == nil {
			panic("Missing RepositoryManager in account controller...")
		}
		handlerOpts := append([]HandlerOption{
			WithHandlerConfig(c.Config),
			WithHandlerLogger(c.Logger),
		}, c.handlerOptions...)
		c.Commands = NewCommands(c.Repo, handlerOpts...)
	}

	if c.Sessions == nil {
		if v, ok := c.Commands.Sessions().(SessionValidator); ok {
			c.Sessions = v
		} else {
			c.Sessions = NewTokenService(c.Config, WithTokenServiceLogger(c.Logger))
		}
	}

	return c
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := RegisterAccountMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var account *Account
	payload.OnResponse = func(acc *Account) { account = acc }

	if err := a.Commands.Register.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTERED ======")
		fmt.Println(print.MaybePrettyJSON(account))
		fmt.Println("=================================")
	}

	return ctx.JSON(http.StatusCreated, success("Registration successful, please verify your email", account))
}

func (a *AccountController) VerifyEmail(ctx router.Context) error {
	payload := VerifyEmailMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var account *Account
	payload.OnResponse = func(acc *Account) { account = acc }

	if err := a.Commands.VerifyEmail.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	message := "Email verified successfully"
	if account.IsPractitioner() {
		message = "Email verified, your application is pending approval"
	}
	return ctx.JSON(http.StatusOK, success(message, account))
}

func (a *AccountController) ResendCode(ctx router.Context) error {
	payload := ResendCodeMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	if err := a.Commands.ResendCode.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("A new verification code was sent", nil))
}

func (a *AccountController) Login(ctx router.Context) error {
	payload := LoginMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var res *LoginResponse
	payload.OnResponse = func(r *LoginResponse) { res = r }

	if err := a.Commands.Login.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.setSessionCookie(ctx, res.Token, time.Duration(a.Config.GetTokenExpiration())*time.Hour)

	return ctx.JSON(http.StatusOK, success("Login successful", res))
}

func (a *AccountController) Logout(ctx router.Context) error {
	a.setSessionCookie(ctx, "", -24*365*time.Hour)
	return ctx.JSON(http.StatusOK, success("Logged out", nil))
}

func (a *AccountController) Reapply(ctx router.Context) error {
	payload := ReapplyPractitionerMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var account *Account
	payload.OnResponse = func(acc *Account) { account = acc }

	if err := a.Commands.ReapplyPractitioner.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Application resubmitted for review", account))
}

func (a *AccountController) ChangePassword(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := ChangePasswordMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}
	payload.AccountID = principal.ID

	if err := a.Commands.ChangePassword.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Password changed successfully", nil))
}

func (a *AccountController) ProfileShow(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	profile, err := a.Commands.GetProfile.Query(ctx.Context(), principal.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("", profile))
}

func (a *AccountController) ProfileUpdate(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := UpdateProfileMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}
	payload.AccountID = principal.ID

	var profile Profile
	payload.OnResponse = func(p Profile) { profile = p }

	if err := a.Commands.UpdateProfile.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Profile updated", profile))
}

func (a *AccountController) Approve(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	var account *Account
	msg := ApprovePractitionerMessage{
		AccountID:  ctx.Param("id"),
		Actor:      PrincipalActor(principal),
		OnResponse: func(acc *Account) { account = acc },
	}

	if err := a.Commands.ApprovePractitioner.Execute(ctx.Context(), msg); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Practitioner approved", account))
}

func (a *AccountController) Reject(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := RejectPractitionerMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var account *Account
	payload.AccountID = ctx.Param("id")
	payload.Actor = PrincipalActor(principal)
	payload.OnResponse = func(acc *Account) { account = acc }

	if err := a.Commands.RejectPractitioner.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Practitioner rejected", account))
}

func (a *AccountController) Inactivate(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := InactivateAccountMessage{}
	if err := bindOptional(ctx, &payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var account *Account
	payload.AccountID = ctx.Param("id")
	payload.Actor = PrincipalActor(principal)
	payload.OnResponse = func(acc *Account) { account = acc }

	if err := a.Commands.InactivateAccount.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Account inactivated", account))
}

func (a *AccountController) Reactivate(ctx router.Context) error {
	principal, ok := GetPrincipal(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := ReactivateAccountMessage{}
	if err := bindOptional(ctx, &payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var account *Account
	payload.AccountID = ctx.Param("id")
	payload.Actor = PrincipalActor(principal)
	payload.OnResponse = func(acc *Account) { account = acc }

	if err := a.Commands.ReactivateAccount.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, success("Account reactivated", account))
}

func (a *AccountController) AuditTrail(ctx router.Context) error {
	entries, err := a.Commands.AuditTrail.Query(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(http.StatusOK, success("", entries))
}

func (a *AccountController) setSessionCookie(ctx router.Context, val string, duration time.Duration) {
	ctx.Cookie(&router.Cookie{
		Name:     a.Config.GetSessionCookieName(),
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// respondError renders err as the JSON error envelope
func (a *AccountController) respondError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithTextCode(TextCodeInternal).
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		a.Logger.Error("request failed", "error", err, "text_code", richErr.TextCode)
	} else {
		a.Logger.Debug("request rejected",
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	}

	return ctx.JSON(status, ErrorBody(richErr))
}

// ErrorBody builds the error response envelope
func ErrorBody(richErr *goerrors.Error) router.ViewContext {
	body := router.ViewContext{
		"code":      richErr.Code,
		"text_code": richErr.TextCode,
		"category":  richErr.Category,
		"message":   richErr.Message,
	}
	if richErr.Category == goerrors.CategoryValidation {
		body["validation"] = richErr.ValidationMap()
	}
	if richErr.Category == goerrors.CategoryInternal {
		body["message"] = "An unexpected server error occurred"
	}
	return router.ViewContext{
		"success": false,
		"error":   body,
	}
}

func success(message string, data any) router.ViewContext {
	out := router.ViewContext{"success": true}
	if message != "" {
		out["message"] = message
	}
	if data != nil {
		out["data"] = data
	}
	return out
}

// bindOptional skips parsing when the request carries no body, the
// fiber body parser rejects empty requests without a content type.
func bindOptional(ctx router.Context, v any) error {
	if len(bytes.TrimSpace(ctx.Body())) == 0 {
		return nil
	}
	return ctx.Bind(v)
}

func badPayload(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed request payload").
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
}
