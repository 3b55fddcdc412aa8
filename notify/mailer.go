package notify

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
)

// Mailer renders notifications and hands them to a Dispatcher.
type Mailer struct {
	renderer   *Renderer
	dispatcher Dispatcher
	logger     accounts.Logger
}

// MailerOption configures a Mailer.
type MailerOption func(*Mailer)

// WithRenderer replaces the default template renderer.
func WithRenderer(r *Renderer) MailerOption {
	return func(m *Mailer) {
		if r != nil {
			m.renderer = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l accounts.Logger) MailerOption {
	return func(m *Mailer) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMailer returns a notifier delivering through dispatcher.
func NewMailer(dispatcher Dispatcher, opts ...MailerOption) *Mailer {
	m := &Mailer{
		renderer:   NewRenderer(nil),
		dispatcher: dispatcher,
		logger:     accounts.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.dispatcher == nil {
		m.dispatcher = LogDispatcher{Logger: m.logger}
	}
	return m
}

// Notify implements accounts.Notifier.
func (m *Mailer) Notify(ctx context.Context, n accounts.Notification) error {
	if n.To == "" {
		return goerrors.New("notification has no recipient", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"kind": string(n.Kind)})
	}

	subject, body, err := m.renderer.Render(n)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render notification").
			WithMetadata(map[string]any{"kind": string(n.Kind)})
	}

	if err := m.dispatcher.Dispatch(ctx, Message{
		To:      n.To,
		Subject: subject,
		Body:    body,
		Data:    n.Data,
	}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to dispatch notification").
			WithMetadata(map[string]any{"kind": string(n.Kind), "to": n.To})
	}

	m.logger.Debug("notification sent", "kind", n.Kind, "to", n.To)
	return nil
}

var _ accounts.Notifier = (*Mailer)(nil)
