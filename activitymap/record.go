// Package activitymap turns account activity events into flat records
// that stream and log transports can store without knowing the
// accounts types.
package activitymap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	accounts "github.com/goliatone/go-accounts"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

const (
	defaultSource = "accounts"
	systemActor   = "system"
	attrPrefix    = "attr."
)

// DefaultRedactedKeys never leave the process in clear text.
var DefaultRedactedKeys = []string{"code", "reapply_token", "token", "password"}

// Change is a from/to pair for status or approval moves.
type Change struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Record is the transport shape of an accounts.ActivityEvent.
type Record struct {
	Verb       string         `json:"verb"`
	Category   string         `json:"category"`
	Actor      string         `json:"actor"`
	ActorRole  string         `json:"actor_role,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Status     *Change        `json:"status,omitempty"`
	Approval   *Change        `json:"approval,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Source     string         `json:"source"`
	At         time.Time      `json:"at"`
}

// Option customizes Map.
type Option func(*mapper)

type mapper struct {
	source string
	redact map[string]struct{}
	now    func() time.Time
}

// WithSource tags records with the emitting service name.
func WithSource(source string) Option {
	return func(m *mapper) {
		if source = strings.TrimSpace(source); source != "" {
			m.source = source
		}
	}
}

// WithRedactedKeys adds attribute keys to the redaction set.
func WithRedactedKeys(keys ...string) Option {
	return func(m *mapper) {
		for _, key := range keys {
			m.redact[strings.ToLower(strings.TrimSpace(key))] = struct{}{}
		}
	}
}

// WithClock sets the time used for events missing OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(m *mapper) {
		if now != nil {
			m.now = now
		}
	}
}

// Map converts event into a Record. The event metadata is copied, never
// mutated.
func Map(event accounts.ActivityEvent, opts ...Option) Record {
	m := &mapper{
		source: defaultSource,
		redact: make(map[string]struct{}, len(DefaultRedactedKeys)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	WithRedactedKeys(DefaultRedactedKeys...)(m)
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	verb := string(event.EventType)
	subject := strings.TrimSpace(event.AccountID)

	actor := strings.TrimSpace(event.Actor.ID)
	if actor == "" {
		actor = subject
	}
	if actor == "" {
		actor = systemActor
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = m.now()
	}

	return Record{
		Verb:       verb,
		Category:   category(verb),
		Actor:      actor,
		ActorRole:  strings.TrimSpace(event.Actor.Type),
		Subject:    subject,
		Status:     change(string(event.FromStatus), string(event.ToStatus)),
		Approval:   change(string(event.FromApproval), string(event.ToApproval)),
		Attributes: m.attributes(event.Metadata),
		Source:     m.source,
		At:         at.UTC(),
	}
}

// Fields flattens the record into string values, the layout used for
// Redis stream entries. Empty values are omitted and attributes are
// prefixed with "attr.".
func (r Record) Fields() map[string]any {
	out := map[string]any{
		"verb":     r.Verb,
		"category": r.Category,
		"actor":    r.Actor,
		"source":   r.Source,
		"at":       r.At.Format(time.RFC3339Nano),
	}
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	put("actor_role", r.ActorRole)
	put("subject", r.Subject)
	if r.Status != nil {
		put("status_from", r.Status.From)
		put("status_to", r.Status.To)
	}
	if r.Approval != nil {
		put("approval_from", r.Approval.From)
		put("approval_to", r.Approval.To)
	}
	for _, key := range r.attributeKeys() {
		put(attrPrefix+key, fmt.Sprint(r.Attributes[key]))
	}
	return out
}

func (r Record) attributeKeys() []string {
	keys := make([]string, 0, len(r.Attributes))
	for key := range r.Attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m *mapper) attributes(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		if _, secret := m.redact[strings.ToLower(key)]; secret {
			out[key] = Redacted
			continue
		}
		out[key] = value
	}
	return out
}

func category(verb string) string {
	if head, _, ok := strings.Cut(verb, "."); ok {
		return head
	}
	return verb
}

func change(from, to string) *Change {
	if from == "" && to == "" {
		return nil
	}
	return &Change{From: from, To: to}
}
