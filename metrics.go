package authcore

import (
	"sync/atomic"
)

// MetricID indexes one counter in the Metrics block.
type MetricID uint16

const (
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected for an existing
	// identifier.
	MetricRegisterDuplicate
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected login attempts.
	MetricLoginFailure
	// MetricAccountLocked counts lockout threshold trips.
	MetricAccountLocked
	// MetricMFARequired counts logins challenged for a second factor.
	MetricMFARequired
	// MetricMFAFailure counts rejected second factors.
	MetricMFAFailure
	// MetricBackupCodeUsed counts backup code consumptions.
	MetricBackupCodeUsed
	// MetricLogout counts logouts.
	MetricLogout
	// MetricRefreshSuccess counts successful refresh rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricPasswordChange counts authenticated password changes.
	MetricPasswordChange
	// MetricPasswordResetRequest counts reset requests (including those for
	// unknown identifiers).
	MetricPasswordResetRequest
	// MetricPasswordResetConfirm counts completed resets.
	MetricPasswordResetConfirm
	// MetricEmailVerified counts consumed email verification tokens.
	MetricEmailVerified
	// MetricPhoneVerified counts matched phone codes.
	MetricPhoneVerified
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the core's counters. Increments are atomic and
// allocation-free; a disabled Metrics turns Inc into a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics returns a Metrics block.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get reads one counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. The copy is consistent per counter, not
// across counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricIDCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return out
}

// String returns the prometheus-style name of the counter.
func (id MetricID) String() string {
	switch id {
	case MetricRegisterSuccess:
		return "register_success"
	case MetricRegisterDuplicate:
		return "register_duplicate"
	case MetricLoginSuccess:
		return "login_success"
	case MetricLoginFailure:
		return "login_failure"
	case MetricAccountLocked:
		return "account_locked"
	case MetricMFARequired:
		return "mfa_required"
	case MetricMFAFailure:
		return "mfa_failure"
	case MetricBackupCodeUsed:
		return "backup_code_used"
	case MetricLogout:
		return "logout"
	case MetricRefreshSuccess:
		return "refresh_success"
	case MetricRefreshFailure:
		return "refresh_failure"
	case MetricPasswordChange:
		return "password_change"
	case MetricPasswordResetRequest:
		return "password_reset_request"
	case MetricPasswordResetConfirm:
		return "password_reset_confirm"
	case MetricEmailVerified:
		return "email_verified"
	case MetricPhoneVerified:
		return "phone_verified"
	default:
		return "unknown"
	}
}
