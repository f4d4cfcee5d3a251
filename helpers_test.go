package authcore_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/servicely/authcore"
	"github.com/servicely/authcore/audit"
	"github.com/servicely/authcore/notify"
	"github.com/servicely/authcore/store/memory"
	"github.com/servicely/authcore/tokenstore"
)

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	cfg.Password.Cost = 10 // keep bcrypt cheap in tests
	cfg.MFA.Skew = 1
	return cfg
}

type testFixture struct {
	core    *authcore.Core
	users   *memory.UserStore
	refresh *memory.RefreshTokenStore
	mfa     *memory.MFAStore
	audits  *memory.AuditStore
	tokens  *tokenstore.Memory
	outbox  *captureSender
}

func newTestCore(t *testing.T, cfg authcore.Config) *testFixture {
	t.Helper()

	f := &testFixture{
		users:   memory.NewUserStore(),
		refresh: memory.NewRefreshTokenStore(),
		mfa:     memory.NewMFAStore(),
		audits:  memory.NewAuditStore(),
		tokens:  tokenstore.NewMemory(),
		outbox:  &captureSender{sent: make(chan sentMail, 16)},
	}

	core, err := authcore.New().
		WithConfig(cfg).
		WithLogger(zap.NewNop()).
		WithUserStore(f.users).
		WithRefreshTokenStore(f.refresh).
		WithMFAStore(f.mfa).
		WithAuditStore(f.audits).
		WithTokenStore(f.tokens).
		WithNotifier(notify.New(f.outbox, nil, "https://app.test")).
		Build()
	if err != nil {
		t.Fatalf("build core: %v", err)
	}
	t.Cleanup(core.Close)

	f.core = core
	return f
}

type sentMail struct {
	to       string
	subject  string
	textBody string
}

// captureSender implements notify.EmailSender for tests.
type captureSender struct {
	sent chan sentMail
}

func (c *captureSender) Send(_ context.Context, to, subject, _, textBody string) error {
	c.sent <- sentMail{to: to, subject: subject, textBody: textBody}
	return nil
}

// waitMail blocks for the next captured email. Sends run on background
// goroutines, so callers that just triggered one wait here.
func (f *testFixture) waitMail(t *testing.T) sentMail {
	t.Helper()
	select {
	case m := <-f.outbox.sent:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for email")
		return sentMail{}
	}
}

// tokenFromMail pulls the token query parameter out of the first link in the
// body.
func tokenFromMail(t *testing.T, m sentMail) string {
	t.Helper()
	idx := strings.Index(m.textBody, "https://app.test")
	if idx < 0 {
		t.Fatalf("no link in email body %q", m.textBody)
	}
	link := m.textBody[idx:]
	if end := strings.IndexAny(link, " \n"); end >= 0 {
		link = link[:end]
	}
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link %q: %v", link, err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("no token in link %q", link)
	}
	return token
}

const (
	testEmail    = "alice@example.com"
	testPhone    = "+15550001111"
	testPassword = "Str0ng!Passw0rd"
)

func (f *testFixture) register(t *testing.T, ctx context.Context) *authcore.AuthResponse {
	t.Helper()
	resp, err := f.core.Register(ctx, authcore.RegisterInput{
		Email:     testEmail,
		Phone:     testPhone,
		Password:  testPassword,
		FirstName: "Alice",
		LastName:  "Smith",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return resp
}

// auditEvents flushes the recorder and returns the user's events for one
// action.
func (f *testFixture) auditEvents(t *testing.T, userID string, action audit.Action) []audit.Event {
	t.Helper()
	f.core.Close()
	events, err := f.audits.ByUser(context.Background(), userID, action, 0, 0)
	if err != nil {
		t.Fatalf("query audit events: %v", err)
	}
	return events
}

// totpNow computes the current code for a base32 seed, same as an
// authenticator app would.
func totpNow(t *testing.T, secretBase32 string, cfg authcore.MFAConfig) string {
	t.Helper()
	code, err := authcore.TOTPCode(secretBase32, time.Now(), cfg)
	if err != nil {
		t.Fatalf("compute totp code: %v", err)
	}
	return code
}
