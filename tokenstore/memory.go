package tokenstore

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryEntry struct {
	ownerID string
	kind    Kind
}

// Memory is an in-process Store backed by a TTL cache. It runs no janitor
// goroutine of its own; expiry is enforced on lookup and reclaimed by the
// host-driven Sweep.
type Memory struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		c: gocache.New(gocache.NoExpiration, 0),
	}
}

// Issue implements Store.
func (m *Memory) Issue(_ context.Context, ownerID string, kind Kind, ttl time.Duration) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.c.Set(tokenKey(token), memoryEntry{ownerID: ownerID, kind: kind}, ttl)
	m.mu.Unlock()

	return token, nil
}

// Consume implements Store. The entry is removed whether or not the kind
// matches; the cache already hides expired entries from Get.
func (m *Memory) Consume(_ context.Context, token string, kind Kind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tokenKey(token)
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	m.c.Delete(key)

	entry, ok := v.(memoryEntry)
	if !ok || entry.kind != kind {
		return "", ErrNotFound
	}
	return entry.ownerID, nil
}

// IssuePhoneCode implements Store, overwriting any prior code for the phone.
func (m *Memory) IssuePhoneCode(_ context.Context, phone string, ttl time.Duration) (string, error) {
	code, err := newPhoneCode()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.c.Set(phoneKey(phone), code, ttl)
	m.mu.Unlock()

	return code, nil
}

// VerifyPhoneCode implements Store. A mismatch leaves the stored code in
// place so the owner can retry until expiry.
func (m *Memory) VerifyPhoneCode(_ context.Context, phone, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := phoneKey(phone)
	v, ok := m.c.Get(key)
	if !ok {
		return false, nil
	}
	stored, ok := v.(string)
	if !ok {
		m.c.Delete(key)
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	m.c.Delete(key)
	return true, nil
}

// Sweep implements Store by evicting expired entries.
func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.c.ItemCount()
	m.c.DeleteExpired()
	return before - m.c.ItemCount(), nil
}

func tokenKey(token string) string {
	return "t:" + token
}

func phoneKey(phone string) string {
	return "p:" + phone
}
