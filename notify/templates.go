// Package notify renders account notifications with pongo2 and hands them
// to a delivery Dispatcher.
package notify

import (
	"fmt"
	"sync"

	"github.com/flosch/pongo2/v6"
	accounts "github.com/goliatone/go-accounts"
)

// Template pairs a subject and body source for a notification kind.
type Template struct {
	Subject string
	Body    string
}

var defaultTemplates = map[accounts.NotificationKind]Template{
	accounts.NotificationVerificationCode: {
		Subject: "Your verification code",
		Body: `<p>Hi {{ name }},</p>
<p>Your verification code is <strong>{{ code }}</strong>.</p>
<p>The code expires in {{ expires_in }}.</p>`,
	},
	accounts.NotificationPractitionerApproved: {
		Subject: "Your practitioner account was approved",
		Body: `<p>Hi {{ name }},</p>
<p>Your practitioner application was approved. You can now sign in with {{ email }}.</p>`,
	},
	accounts.NotificationPractitionerRejected: {
		Subject: "Your practitioner application needs changes",
		Body: `<p>Hi {{ name }},</p>
<p>Your practitioner application was not approved.</p>
<p>Reason: {{ reason }}</p>
<p>You can reapply within {{ expires_in }} using this token: <code>{{ reapply_token }}</code></p>`,
	},
	accounts.NotificationAccountInactivated: {
		Subject: "Your account was deactivated",
		Body: `<p>Hi {{ name }},</p>
<p>Your account was deactivated by an administrator.</p>
<p>Reason: {{ reason }}</p>{% if note %}
<p>{{ note }}</p>{% endif %}`,
	},
	accounts.NotificationAccountReactivated: {
		Subject: "Your account was reactivated",
		Body: `<p>Hi {{ name }},</p>
<p>Your account is active again.</p>{% if note %}
<p>{{ note }}</p>{% endif %}`,
	},
	accounts.NotificationPasswordChanged: {
		Subject: "Your password was changed",
		Body: `<p>Hi {{ name }},</p>
<p>The password for {{ email }} was just changed. If this was not you, contact support.</p>`,
	},
}

type compiled struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

// Renderer compiles and caches notification templates.
type Renderer struct {
	mu        sync.RWMutex
	sources   map[accounts.NotificationKind]Template
	templates map[accounts.NotificationKind]compiled
}

// NewRenderer returns a renderer seeded with the built in templates,
// overrides replace them per kind.
func NewRenderer(overrides map[accounts.NotificationKind]Template) *Renderer {
	sources := make(map[accounts.NotificationKind]Template, len(defaultTemplates)+len(overrides))
	for kind, tpl := range defaultTemplates {
		sources[kind] = tpl
	}
	for kind, tpl := range overrides {
		sources[kind] = tpl
	}
	return &Renderer{
		sources:   sources,
		templates: map[accounts.NotificationKind]compiled{},
	}
}

// Render returns the subject and body for the notification.
func (r *Renderer) Render(n accounts.Notification) (string, string, error) {
	tpl, err := r.lookup(n.Kind)
	if err != nil {
		return "", "", err
	}

	ctx := pongo2.Context{}
	for k, v := range n.Data {
		ctx[k] = v
	}
	if _, ok := ctx["name"]; !ok {
		ctx["name"] = n.Name
	}

	subject, err := tpl.subject.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("render subject %s: %w", n.Kind, err)
	}
	body, err := tpl.body.Execute(ctx)
	if err != nil {
		return "", "", fmt.Errorf("render body %s: %w", n.Kind, err)
	}
	return subject, body, nil
}

func (r *Renderer) lookup(kind accounts.NotificationKind) (compiled, error) {
	r.mu.RLock()
	tpl, ok := r.templates[kind]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	src, ok := r.sources[kind]
	if !ok {
		return compiled{}, fmt.Errorf("no template for notification %q", kind)
	}

	subject, err := pongo2.FromString(src.Subject)
	if err != nil {
		return compiled{}, fmt.Errorf("compile subject %s: %w", kind, err)
	}
	body, err := pongo2.FromString(src.Body)
	if err != nil {
		return compiled{}, fmt.Errorf("compile body %s: %w", kind, err)
	}

	tpl = compiled{subject: subject, body: body}
	r.mu.Lock()
	r.templates[kind] = tpl
	r.mu.Unlock()
	return tpl, nil
}
