package accounts

import "context"

// NotificationKind selects the message template
type NotificationKind string

const (
	NotificationVerificationCode     NotificationKind = "verification_code"
	NotificationPractitionerApproved NotificationKind = "practitioner_approved"
	NotificationPractitionerRejected NotificationKind = "practitioner_rejected"
	NotificationAccountInactivated   NotificationKind = "account_inactivated"
	NotificationAccountReactivated   NotificationKind = "account_reactivated"
	NotificationPasswordChanged      NotificationKind = "password_changed"
)

// Notification is handed to the Notifier after the state change committed
type Notification struct {
	Kind NotificationKind
	To   string
	Name string
	Data map[string]any
}

// Notifier delivers notifications to account owners. Delivery is best
// effort, failures never roll back the operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) error { return nil }

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func newNotification(kind NotificationKind, account *Account, data map[string]any) Notification {
	if data == nil {
		data = map[string]any{}
	}
	data["name"] = account.Name
	data["email"] = account.Email
	data["role"] = account.Role
	return Notification{
		Kind: kind,
		To:   account.Email,
		Name: account.Name,
		Data: data,
	}
}
