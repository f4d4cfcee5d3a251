package memory

import (
	"context"
	"sync"

	"github.com/servicely/authcore"
)

// MFAStore implements authcore.MFAStore in memory.
type MFAStore struct {
	mu      sync.Mutex
	secrets map[string]*authcore.MFASecret
}

// NewMFAStore returns an empty MFAStore.
func NewMFAStore() *MFAStore {
	return &MFAStore{secrets: make(map[string]*authcore.MFASecret)}
}

func (s *MFAStore) Get(_ context.Context, userID string) (*authcore.MFASecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSecret(s.secrets[userID]), nil
}

func (s *MFAStore) Save(_ context.Context, sec *authcore.MFASecret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[sec.UserID] = cloneSecret(sec)
	return nil
}

func (s *MFAStore) MarkVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[userID]
	if !ok {
		return authcore.ErrMFANotConfigured
	}
	sec.Verified = true
	return nil
}

func (s *MFAStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, userID)
	return nil
}

func (s *MFAStore) ConsumeBackupCode(_ context.Context, userID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[userID]
	if !ok {
		return false, nil
	}
	for i, c := range sec.BackupCodes {
		if c == code {
			sec.BackupCodes = append(sec.BackupCodes[:i], sec.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MFAStore) ReplaceBackupCodes(_ context.Context, userID string, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[userID]
	if !ok {
		return authcore.ErrMFANotConfigured
	}
	sec.BackupCodes = append([]string(nil), codes...)
	return nil
}
