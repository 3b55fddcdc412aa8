package notify

import (
	"context"

	accounts "github.com/goliatone/go-accounts"
	"gopkg.in/gomail.v2"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
	Data    map[string]any
}

// Dispatcher delivers rendered messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host"`
	Port     int    `koanf:"port" json:"port"`
	Username string `koanf:"username" json:"username"`
	Password string `koanf:"password" json:"password"`
	From     string `koanf:"from" json:"from"`
}

// Sender is implemented by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher sends messages through an SMTP server.
type SMTPDispatcher struct {
	from   string
	sender Sender
}

// NewSMTPDispatcher builds a dispatcher backed by a gomail dialer.
func NewSMTPDispatcher(cfg SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// NewSMTPDispatcherWithSender is used when the transport is provided by the caller.
func NewSMTPDispatcherWithSender(from string, sender Sender) *SMTPDispatcher {
	return &SMTPDispatcher{from: from, sender: sender}
}

func (s *SMTPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)
	return s.sender.DialAndSend(m)
}

// LogDispatcher writes messages to the logger instead of sending them.
// Useful in development.
type LogDispatcher struct {
	Logger accounts.Logger
}

func (d LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	logger := d.Logger
	if logger == nil {
		logger = accounts.NopLogger()
	}
	logger.Info("email dispatched", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
