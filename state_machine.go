package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// AccountEvent names a lifecycle trigger
type AccountEvent string

const (
	EventVerifyEmail AccountEvent = "verify_email"
	EventApprove     AccountEvent = "approve"
	EventReject      AccountEvent = "reject"
	EventReapply     AccountEvent = "reapply"
	EventInactivate  AccountEvent = "inactivate"
	EventReactivate  AccountEvent = "reactivate"
)

// TransitionMetadata captures extra context for a transition.
type TransitionMetadata struct {
	Reason   string
	Note     string
	Metadata map[string]any
}

// TransitionContext is passed into hooks and returned to the caller.
type TransitionContext struct {
	Event        AccountEvent
	Actor        ActorRef
	Account      *Account
	From         AccountStatus
	To           AccountStatus
	FromApproval ApprovalStatus
	ToApproval   ApprovalStatus
	Meta         TransitionMetadata
	OccurredAt   time.Time
	Columns      []string
}

// TransitionHook is executed before or after a transition.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

// TransitionHookPhase identifies whether a hook ran before or after persistence.
type TransitionHookPhase string

const (
	HookPhaseBefore TransitionHookPhase = "before_transition"
	HookPhaseAfter  TransitionHookPhase = "after_transition"
)

// TransitionOption customizes a single transition.
type TransitionOption func(*transitionOptions)

// AccountStateMachine applies lifecycle events to accounts. Transition
// runs inside the caller's transaction, Publish is meant to be called
// once that transaction committed.
type AccountStateMachine interface {
	Transition(ctx context.Context, tx bun.IDB, actor ActorRef, account *Account, event AccountEvent, opts ...TransitionOption) (TransitionContext, error)
	Publish(ctx context.Context, tc TransitionContext)
	CanLogin(account *Account) error
}

// HookErrorHandler handles errors surfaced by transition hooks.
type HookErrorHandler func(ctx context.Context, phase TransitionHookPhase, err error, tc TransitionContext) error

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*accountStateMachine)

// WithStateMachineClock injects a custom clock
func WithStateMachineClock(clock Clock) StateMachineOption {
	return func(sm *accountStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithStateMachineActivitySink sets the ActivitySink used to publish lifecycle events.
func WithStateMachineActivitySink(sink ActivitySink) StateMachineOption {
	return func(sm *accountStateMachine) {
		sm.activitySink = normalizeActivitySink(sink)
	}
}

// WithStateMachineHookErrorHandler overrides how hook failures are propagated.
func WithStateMachineHookErrorHandler(handler HookErrorHandler) StateMachineOption {
	return func(sm *accountStateMachine) {
		if handler != nil {
			sm.hookErrorHandler = handler
		}
	}
}

// WithStateMachineLogger overrides the logger used for sink failures.
func WithStateMachineLogger(logger Logger) StateMachineOption {
	return func(sm *accountStateMachine) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithTransitionReason sets the human readable reason for the transition.
func WithTransitionReason(reason string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Reason = strings.TrimSpace(reason)
	}
}

// WithTransitionNote attaches an optional administrator note.
func WithTransitionNote(note string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.metadata.Note = strings.TrimSpace(note)
	}
}

// WithTransitionMetadata merges metadata into the transition context.
func WithTransitionMetadata(metadata map[string]any) TransitionOption {
	return func(opts *transitionOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata.Metadata == nil {
			opts.metadata.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata.Metadata[k] = v
		}
	}
}

// WithReapplyToken stores the hash of the token issued on rejection.
func WithReapplyToken(hash string, expiresAt time.Time) TransitionOption {
	return func(opts *transitionOptions) {
		opts.reapplyTokenHash = hash
		opts.reapplyTokenExpiresAt = &expiresAt
	}
}

// WithProfileURL replaces the practitioner profile URL on reapply.
func WithProfileURL(url string) TransitionOption {
	return func(opts *transitionOptions) {
		opts.profileURL = strings.TrimSpace(url)
	}
}

// WithBeforeTransitionHook adds a hook executed before the update.
func WithBeforeTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterTransitionHook adds a hook executed after the update succeeds.
func WithAfterTransitionHook(h TransitionHook) TransitionOption {
	return func(opts *transitionOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// NewAccountStateMachine returns the default implementation backed by accounts.
func NewAccountStateMachine(accounts Accounts, opts ...StateMachineOption) AccountStateMachine {
	sm := &accountStateMachine{
		accounts: accounts,
		transitions: map[AccountStatus]map[AccountStatus]struct{}{
			StatusPending: {
				StatusActive:   {},
				StatusRejected: {},
				StatusInactive: {},
			},
			StatusActive: {
				StatusInactive: {},
			},
			StatusRejected: {
				StatusPending:  {},
				StatusActive:   {},
				StatusInactive: {},
			},
			StatusInactive: {
				StatusActive:   {},
				StatusRejected: {},
			},
		},
		now:          normalizeClock(nil),
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		hookErrorHandler: func(_ context.Context, _ TransitionHookPhase, err error, _ TransitionContext) error {
			return err
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

type accountStateMachine struct {
	accounts         Accounts
	transitions      map[AccountStatus]map[AccountStatus]struct{}
	now              Clock
	activitySink     ActivitySink
	logger           Logger
	hookErrorHandler HookErrorHandler
}

type transitionOptions struct {
	metadata              TransitionMetadata
	beforeHooks           []TransitionHook
	afterHooks            []TransitionHook
	reapplyTokenHash      string
	reapplyTokenExpiresAt *time.Time
	profileURL            string
}

func (sm *accountStateMachine) Transition(ctx context.Context, tx bun.IDB, actor ActorRef, account *Account, event AccountEvent, opts ...TransitionOption) (TransitionContext, error) {
	if account == nil {
		return TransitionContext{}, ErrAccountNotFound
	}

	options := &transitionOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	now := sm.now()
	if err := sm.guard(account, event, now); err != nil {
		return TransitionContext{}, err
	}

	tc := TransitionContext{
		Event:        event,
		Actor:        actor,
		Account:      account,
		From:         account.Status,
		FromApproval: account.ApprovalStatus,
		Meta:         options.metadata,
		OccurredAt:   now,
	}

	if err := sm.runHooks(ctx, options.beforeHooks, tc, HookPhaseBefore); err != nil {
		return TransitionContext{}, err
	}

	tc.Columns = sm.apply(account, event, actor, now, options)
	tc.To = account.Status
	tc.ToApproval = account.ApprovalStatus

	if tc.From != tc.To && !sm.canTransition(tc.From, tc.To) {
		return TransitionContext{}, ErrInvalidTransition
	}

	if err := sm.accounts.UpdateVersionedTx(ctx, tx, account, tc.Columns...); err != nil {
		return TransitionContext{}, err
	}

	if err := sm.runHooks(ctx, options.afterHooks, tc, HookPhaseAfter); err != nil {
		return TransitionContext{}, err
	}

	return tc, nil
}

// guard returns the domain error for an event that can not be applied.
// Checks run in the order callers observe them.
func (sm *accountStateMachine) guard(account *Account, event AccountEvent, now time.Time) error {
	switch event {
	case EventVerifyEmail:
		if account.EmailVerified {
			return ErrAlreadyVerified
		}
	case EventApprove:
		if !account.IsPractitioner() {
			return ErrRoleMismatch
		}
		if !account.EmailVerified {
			return ErrNotEligible
		}
		if account.ApprovalStatus != ApprovalPending {
			return ErrAlreadyProcessed
		}
	case EventReject:
		if !account.IsPractitioner() {
			return ErrRoleMismatch
		}
		if account.ApprovalStatus != ApprovalPending {
			return ErrAlreadyProcessed
		}
	case EventReapply:
		if !account.IsPractitioner() || account.ApprovalStatus != ApprovalRejected {
			return ErrNotEligible
		}
		if IsExpired(now, account.ReapplyTokenExpiresAt) {
			return ErrExpiredToken
		}
	case EventInactivate:
		if account.IsSuperAdmin() {
			return ErrAccountProtected
		}
		if account.Status == StatusInactive {
			return ErrAlreadyInactive
		}
	case EventReactivate:
		if account.IsSuperAdmin() {
			return ErrAccountProtected
		}
		if account.Status == StatusActive {
			return ErrAlreadyActive
		}
	default:
		return goerrors.New("unknown account event", goerrors.CategoryInternal).
			WithTextCode(TextCodeInvalidTransition).
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"event": event})
	}
	return nil
}

// apply mutates account in memory and returns the columns to persist.
// An approval decision always settles the status, even on an inactivated
// practitioner.
func (sm *accountStateMachine) apply(account *Account, event AccountEvent, actor ActorRef, now time.Time, opts *transitionOptions) []string {
	switch event {
	case EventVerifyEmail:
		account.EmailVerified = true
		account.clearVerificationCode()
		if account.Role == RoleUser && account.Status == StatusPending {
			account.Status = StatusActive
		}
		return []string{"is_email_verified", "verification_code", "verification_code_expires_at", "status"}

	case EventApprove:
		account.ApprovalStatus = ApprovalApproved
		account.Status = StatusActive
		account.ApprovedAt = timePtr(now)
		account.ApprovedBy = actor.ID
		account.clearReapplyToken()
		return []string{"status", "approval_status", "approved_at", "approved_by", "reapply_token_hash", "reapply_token_expires_at"}

	case EventReject:
		account.ApprovalStatus = ApprovalRejected
		account.Status = StatusRejected
		account.RejectedAt = timePtr(now)
		account.RejectedBy = actor.ID
		account.RejectionReason = opts.metadata.Reason
		account.ReapplyTokenHash = opts.reapplyTokenHash
		account.ReapplyTokenExpiresAt = opts.reapplyTokenExpiresAt
		return []string{"status", "approval_status", "rejected_at", "rejected_by", "rejection_reason", "reapply_token_hash", "reapply_token_expires_at"}

	case EventReapply:
		account.ApprovalStatus = ApprovalPending
		if account.Status == StatusRejected {
			account.Status = StatusPending
		}
		if opts.profileURL != "" {
			account.ProfileURL = opts.profileURL
		}
		account.clearReapplyToken()
		return []string{"status", "approval_status", "profile_url", "reapply_token_hash", "reapply_token_expires_at"}

	case EventInactivate:
		account.Status = StatusInactive
		account.InactivatedAt = timePtr(now)
		account.InactivatedBy = actor.ID
		account.InactivationReason = opts.metadata.Reason
		account.InactivationNote = opts.metadata.Note
		return []string{"status", "inactivated_at", "inactivated_by", "inactivation_reason", "inactivation_note"}

	case EventReactivate:
		account.Status = StatusActive
		account.ReactivatedAt = timePtr(now)
		account.ReactivatedBy = actor.ID
		account.ReactivationNote = opts.metadata.Note
		return []string{"status", "reactivated_at", "reactivated_by", "reactivation_note"}
	}
	return nil
}

// CanLogin applies the login gate. Unverified email wins over every
// other reason, then pending or rejected practitioners, then status.
func (sm *accountStateMachine) CanLogin(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	if !account.EmailVerified {
		return ErrNotVerified
	}
	if account.IsPractitioner() && account.ApprovalStatus != ApprovalApproved {
		return ErrNotApproved
	}
	if account.Status != StatusActive {
		return ErrNotActive
	}
	return nil
}

func (sm *accountStateMachine) Publish(ctx context.Context, tc TransitionContext) {
	if tc.Account == nil {
		return
	}
	recordActivity(ctx, sm.activitySink, sm.logger, sm.now, ActivityEvent{
		EventType:    eventActivityType(tc.Event),
		Actor:        tc.Actor,
		AccountID:    tc.Account.ID.String(),
		FromStatus:   tc.From,
		ToStatus:     tc.To,
		FromApproval: tc.FromApproval,
		ToApproval:   tc.ToApproval,
		Metadata:     transitionMetadata(tc.Meta),
		OccurredAt:   tc.OccurredAt,
	})
}

func (sm *accountStateMachine) runHooks(ctx context.Context, hooks []TransitionHook, data TransitionContext, phase TransitionHookPhase) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, data); err != nil {
			if sm.hookErrorHandler == nil {
				return err
			}
			return sm.hookErrorHandler(ctx, phase, err, data)
		}
	}
	return nil
}

func (sm *accountStateMachine) canTransition(from, to AccountStatus) bool {
	if allowed, ok := sm.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func eventActivityType(event AccountEvent) ActivityEventType {
	switch event {
	case EventVerifyEmail:
		return ActivityEventEmailVerified
	case EventApprove:
		return ActivityEventPractitionerApproved
	case EventReject:
		return ActivityEventPractitionerRejected
	case EventReapply:
		return ActivityEventPractitionerReapplied
	case EventInactivate:
		return ActivityEventAccountInactivated
	case EventReactivate:
		return ActivityEventAccountReactivated
	default:
		return ActivityEventStatusChanged
	}
}

func transitionMetadata(meta TransitionMetadata) map[string]any {
	if meta.Reason == "" && meta.Note == "" && len(meta.Metadata) == 0 {
		return nil
	}

	result := map[string]any{}
	if meta.Reason != "" {
		result["reason"] = meta.Reason
	}
	if meta.Note != "" {
		result["note"] = meta.Note
	}
	for k, v := range meta.Metadata {
		result[k] = v
	}
	return result
}
