// Package audit appends structured security events and answers the queries
// the security team runs against them. Recording is asynchronous and never
// fails outward: a broken audit store must not break an auth flow.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Action enumerates the authentication-relevant event types.
type Action string

const (
	// ActionRegister is recorded on successful registration.
	ActionRegister Action = "REGISTER"
	// ActionLogin is recorded on successful login.
	ActionLogin Action = "LOGIN"
	// ActionLogout is recorded on logout.
	ActionLogout Action = "LOGOUT"
	// ActionFailedLogin is recorded on every rejected login attempt.
	ActionFailedLogin Action = "FAILED_LOGIN"
	// ActionAccountLock is recorded when the lockout threshold trips.
	ActionAccountLock Action = "ACCOUNT_LOCK"
	// ActionPasswordChange is recorded on an authenticated password change.
	ActionPasswordChange Action = "PASSWORD_CHANGE"
	// ActionPasswordReset is recorded on both reset phases (request/confirm).
	ActionPasswordReset Action = "PASSWORD_RESET"
	// ActionTokenRefresh is recorded on successful refresh rotation.
	ActionTokenRefresh Action = "TOKEN_REFRESH"
	// ActionEmailVerify is recorded when an email verification token is
	// consumed.
	ActionEmailVerify Action = "EMAIL_VERIFY"
	// ActionPhoneVerify is recorded when a phone code is matched.
	ActionPhoneVerify Action = "PHONE_VERIFY"
	// ActionMFAEnabled is recorded when MFA setup is confirmed.
	ActionMFAEnabled Action = "MFA_ENABLED"
	// ActionMFADisabled is recorded when MFA is disabled.
	ActionMFADisabled Action = "MFA_DISABLED"
)

// Event is one append-only audit record. UserID is empty for pre-auth
// failures (unknown identifier); nothing else is ever mutated except the
// suspicious flag via MarkSuspicious.
type Event struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id,omitempty"`
	Action       Action            `json:"action"`
	Description  string            `json:"description,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	IsSuspicious bool              `json:"is_suspicious"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Store is the persistence contract for audit rows. All list queries return
// newest-first.
type Store interface {
	Insert(ctx context.Context, e *Event) error
	ByUser(ctx context.Context, userID string, action Action, limit, offset int) ([]Event, error)
	Suspicious(ctx context.Context, limit, offset int) ([]Event, error)
	// FailedLoginsSince returns FAILED_LOGIN events at or after since; an
	// empty ip matches all addresses.
	FailedLoginsSince(ctx context.Context, ip string, since time.Time) ([]Event, error)
	// MarkSuspicious sets the flag and merges reason into metadata.
	MarkSuspicious(ctx context.Context, id, reason string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sink receives a copy of every recorded event, for mirroring to external
// systems (SIEM shipper, test channel).
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

// Emit implements Sink.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Emit implements Sink.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side of the channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit implements Sink.
func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
