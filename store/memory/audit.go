package memory

import (
	"context"
	"sync"
	"time"

	"github.com/servicely/authcore/audit"
)

// AuditStore implements audit.Store in memory. Events are held newest-first
// so the list queries are plain slices.
type AuditStore struct {
	mu     sync.Mutex
	events []audit.Event
}

// NewAuditStore returns an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Insert(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append([]audit.Event{*e}, s.events...)
	return nil
}

func (s *AuditStore) ByUser(_ context.Context, userID string, action audit.Action, limit, offset int) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.UserID != userID {
			continue
		}
		if action != "" && e.Action != action {
			continue
		}
		out = append(out, e)
	}
	return page(out, limit, offset), nil
}

func (s *AuditStore) Suspicious(_ context.Context, limit, offset int) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.IsSuspicious {
			out = append(out, e)
		}
	}
	return page(out, limit, offset), nil
}

func (s *AuditStore) FailedLoginsSince(_ context.Context, ip string, since time.Time) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action != audit.ActionFailedLogin {
			continue
		}
		if ip != "" && e.IPAddress != ip {
			continue
		}
		if e.CreatedAt.Before(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *AuditStore) MarkSuspicious(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].IsSuspicious = true
			if reason != "" {
				if s.events[i].Metadata == nil {
					s.events[i].Metadata = make(map[string]string)
				}
				s.events[i].Metadata["reason"] = reason
			}
			return nil
		}
	}
	return nil
}

func (s *AuditStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

func page(events []audit.Event, limit, offset int) []audit.Event {
	if offset >= len(events) {
		return nil
	}
	events = events[offset:]
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}
