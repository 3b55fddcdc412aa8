package accounts

// Commands groups every handler built on one set of dependencies so
// they share the state machine, clock and sinks.
type Commands struct {
	handlerDeps

	Register            *RegisterAccountHandler
	VerifyEmail         *VerifyEmailHandler
	ResendCode          *ResendCodeHandler
	Login               *LoginHandler
	ApprovePractitioner *ApprovePractitionerHandler
	RejectPractitioner  *RejectPractitionerHandler
	ReapplyPractitioner *ReapplyPractitionerHandler
	InactivateAccount   *InactivateAccountHandler
	ReactivateAccount   *ReactivateAccountHandler
	ChangePassword      *ChangePasswordHandler
	GetProfile          *GetProfileHandler
	UpdateProfile       *UpdateProfileHandler
	AuditTrail          *AuditTrailHandler
}

func NewCommands(repo RepositoryManager, opts ...HandlerOption) *Commands {
	deps := newHandlerDeps(repo, opts...)
	return &Commands{
		handlerDeps:         deps,
		Register:            &RegisterAccountHandler{handlerDeps: deps},
		VerifyEmail:         &VerifyEmailHandler{handlerDeps: deps},
		ResendCode:          &ResendCodeHandler{handlerDeps: deps},
		Login:               &LoginHandler{handlerDeps: deps},
		ApprovePractitioner: &ApprovePractitionerHandler{handlerDeps: deps},
		RejectPractitioner:  &RejectPractitionerHandler{handlerDeps: deps},
		ReapplyPractitioner: &ReapplyPractitionerHandler{handlerDeps: deps},
		InactivateAccount:   &InactivateAccountHandler{handlerDeps: deps},
		ReactivateAccount:   &ReactivateAccountHandler{handlerDeps: deps},
		ChangePassword:      &ChangePasswordHandler{handlerDeps: deps},
		GetProfile:          &GetProfileHandler{handlerDeps: deps},
		UpdateProfile:       &UpdateProfileHandler{handlerDeps: deps},
		AuditTrail:          &AuditTrailHandler{handlerDeps: deps},
	}
}

// StateMachine exposes the lifecycle rules the commands run on
func (c *Commands) StateMachine() AccountStateMachine {
	return c.machine
}

// Sessions returns the issuer used on login
func (c *Commands) Sessions() SessionIssuer {
	return c.sessions
}
