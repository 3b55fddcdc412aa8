package accounts

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountRegistered     ActivityEventType = "account.registered"
	ActivityEventEmailVerified         ActivityEventType = "account.email.verified"
	ActivityEventCodeResent            ActivityEventType = "account.code.resent"
	ActivityEventStatusChanged         ActivityEventType = "account.status.changed"
	ActivityEventPractitionerApproved  ActivityEventType = "practitioner.approved"
	ActivityEventPractitionerRejected  ActivityEventType = "practitioner.rejected"
	ActivityEventPractitionerReapplied ActivityEventType = "practitioner.reapplied"
	ActivityEventAccountInactivated    ActivityEventType = "account.inactivated"
	ActivityEventAccountReactivated    ActivityEventType = "account.reactivated"
	ActivityEventLoginSuccess          ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure          ActivityEventType = "auth.login.failure"
	ActivityEventPasswordChanged       ActivityEventType = "auth.password.changed"
	ActivityEventProfileUpdated        ActivityEventType = "account.profile.updated"
)

// ActivityEvent captures audit friendly information about an action.
type ActivityEvent struct {
	EventType    ActivityEventType
	Actor        ActorRef
	AccountID    string
	FromStatus   AccountStatus
	ToStatus     AccountStatus
	FromApproval ApprovalStatus
	ToApproval   ApprovalStatus
	Metadata     map[string]any
	OccurredAt   time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity never fails the calling operation, sink errors are logged
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, clock Clock, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = SystemActor()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = normalizeClock(clock)()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink error", "event", event.EventType, "error", err)
	}
}
