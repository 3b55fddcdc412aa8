package notify_test

import (
	"context"
	"errors"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureDispatcher struct {
	messages []notify.Message
	err      error
}

func (c *captureDispatcher) Dispatch(_ context.Context, msg notify.Message) error {
	c.messages = append(c.messages, msg)
	return c.err
}

type captureSender struct {
	sent []*gomail.Message
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.sent = append(c.sent, m...)
	return nil
}

func TestRendererVerificationCode(t *testing.T) {
	r := notify.NewRenderer(nil)

	subject, body, err := r.Render(accounts.Notification{
		Kind: accounts.NotificationVerificationCode,
		To:   "jane@example.com",
		Name: "Jane",
		Data: map[string]any{"code": "123456", "expires_in": "10m0s"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your verification code", subject)
	assert.Contains(t, body, "Hi Jane")
	assert.Contains(t, body, "<strong>123456</strong>")
	assert.Contains(t, body, "10m0s")
}

func TestRendererOptionalNote(t *testing.T) {
	r := notify.NewRenderer(nil)

	_, withNote, err := r.Render(accounts.Notification{
		Kind: accounts.NotificationAccountReactivated,
		Data: map[string]any{"name": "Sam", "note": "welcome back"},
	})
	require.NoError(t, err)
	assert.Contains(t, withNote, "welcome back")

	_, withoutNote, err := r.Render(accounts.Notification{
		Kind: accounts.NotificationAccountReactivated,
		Data: map[string]any{"name": "Sam"},
	})
	require.NoError(t, err)
	assert.NotContains(t, withoutNote, "welcome back")
}

func TestRendererOverridesAndUnknownKind(t *testing.T) {
	r := notify.NewRenderer(map[accounts.NotificationKind]notify.Template{
		accounts.NotificationPasswordChanged: {Subject: "Security alert for {{ email }}", Body: "changed"},
	})

	subject, body, err := r.Render(accounts.Notification{
		Kind: accounts.NotificationPasswordChanged,
		Data: map[string]any{"email": "a@b.co"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Security alert for a@b.co", subject)
	assert.Equal(t, "changed", body)

	_, _, err = r.Render(accounts.Notification{Kind: "unknown"})
	assert.Error(t, err)
}

func TestMailerNotify(t *testing.T) {
	dispatcher := &captureDispatcher{}
	mailer := notify.NewMailer(dispatcher)

	err := mailer.Notify(context.Background(), accounts.Notification{
		Kind: accounts.NotificationPractitionerRejected,
		To:   "doc@example.com",
		Name: "Doc",
		Data: map[string]any{
			"reason":        "missing license",
			"reapply_token": "abc123",
			"expires_in":    "24h0m0s",
		},
	})
	require.NoError(t, err)
	require.Len(t, dispatcher.messages, 1)

	msg := dispatcher.messages[0]
	assert.Equal(t, "doc@example.com", msg.To)
	assert.Equal(t, "Your practitioner application needs changes", msg.Subject)
	assert.Contains(t, msg.Body, "missing license")
	assert.Contains(t, msg.Body, "abc123")
}

func TestMailerErrors(t *testing.T) {
	dispatcher := &captureDispatcher{err: errors.New("smtp down")}
	mailer := notify.NewMailer(dispatcher)

	err := mailer.Notify(context.Background(), accounts.Notification{Kind: accounts.NotificationPasswordChanged})
	require.Error(t, err)
	assert.Empty(t, dispatcher.messages)

	err = mailer.Notify(context.Background(), accounts.Notification{
		Kind: accounts.NotificationPasswordChanged,
		To:   "a@b.co",
	})
	require.Error(t, err)
	assert.Len(t, dispatcher.messages, 1)
}

func TestSMTPDispatcher(t *testing.T) {
	sender := &captureSender{}
	d := notify.NewSMTPDispatcherWithSender("noreply@example.com", sender)

	err := d.Dispatch(context.Background(), notify.Message{
		To:      "a@b.co",
		Subject: "hello",
		Body:    "<p>body</p>",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"noreply@example.com"}, sender.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"a@b.co"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"hello"}, sender.sent[0].GetHeader("Subject"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Dispatch(ctx, notify.Message{To: "a@b.co"}), context.Canceled)
	assert.Len(t, sender.sent, 1)
}

func TestLogDispatcher(t *testing.T) {
	mailer := notify.NewMailer(nil)
	assert.NoError(t, mailer.Notify(context.Background(), accounts.Notification{
		Kind: accounts.NotificationPractitionerApproved,
		To:   "doc@example.com",
		Name: "Doc",
	}))
}
