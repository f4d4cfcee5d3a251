package memory

import (
	"context"
	"sync"
	"time"

	"github.com/servicely/authcore"
)

// UserStore implements authcore.UserStore in memory. A single mutex guards
// all maps, which makes RegisterFailedLogin trivially atomic.
type UserStore struct {
	mu      sync.Mutex
	users   map[string]*authcore.User // id -> user
	byEmail map[string]string         // email -> id
	byPhone map[string]string         // phone -> id
}

// NewUserStore returns an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*authcore.User),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

func (s *UserStore) GetByID(_ context.Context, id string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[authcore.NormalizeEmail(email)]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *UserStore) GetByPhone(_ context.Context, phone string) (*authcore.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *UserStore) Create(_ context.Context, u *authcore.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := authcore.NormalizeEmail(u.Email)
	if _, exists := s.byEmail[email]; exists {
		return authcore.ErrAccountExists
	}
	if u.Phone != "" {
		if _, exists := s.byPhone[u.Phone]; exists {
			return authcore.ErrAccountExists
		}
	}

	stored := cloneUser(u)
	stored.Email = email
	s.users[stored.ID] = stored
	s.byEmail[email] = stored.ID
	if stored.Phone != "" {
		s.byPhone[stored.Phone] = stored.ID
	}
	return nil
}

func (s *UserStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *UserStore) SetVerified(_ context.Context, userID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.IsVerified = verified
	return nil
}

func (s *UserStore) SetMFAEnabled(_ context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.MFAEnabled = enabled
	return nil
}

// SetActive toggles the account's active flag. Not part of the core's store
// contract; deployments flip this from their admin surface.
func (s *UserStore) SetActive(userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (s *UserStore) RegisterFailedLogin(_ context.Context, userID string, threshold int, lockFor time.Duration) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, false, authcore.ErrUserNotFound
	}
	u.FailedLoginAttempts++
	if threshold > 0 && u.FailedLoginAttempts >= threshold {
		u.LockedUntil = timePtr(time.Now().Add(lockFor))
		return u.FailedLoginAttempts, true, nil
	}
	return u.FailedLoginAttempts, false, nil
}

func (s *UserStore) ResetLoginState(_ context.Context, userID, ip string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = timePtr(at)
	u.LastLoginIP = ip
	return nil
}
