// Package memory provides in-process implementations of the authcore
// persistence interfaces. They are safe for concurrent use and intended for
// tests and single-node development setups; nothing survives a restart.
package memory

import (
	"time"

	"github.com/servicely/authcore"
)

func cloneUser(u *authcore.User) *authcore.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		c.LockedUntil = &t
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	c.Roles = append([]authcore.UserRole(nil), u.Roles...)
	return &c
}

func cloneToken(t *authcore.RefreshToken) *authcore.RefreshToken {
	if t == nil {
		return nil
	}
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	return &c
}

func cloneSecret(s *authcore.MFASecret) *authcore.MFASecret {
	if s == nil {
		return nil
	}
	c := *s
	c.BackupCodes = append([]string(nil), s.BackupCodes...)
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }
