// Package authcore is the authentication and session-security core of the
// Servicely marketplace backend: credential verification, session token
// lifecycle, multi-factor authentication, account lockout, and security
// audit.
//
// The package is designed for concurrent server workloads: Core methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The HTTP layer is out of scope; it supplies validated
// inputs plus request metadata attached to the context via [WithClientIP]
// and [WithUserAgent], and maps the error taxonomy ([KindOf]) onto its own
// status codes.
//
// # Architecture boundaries
//
// authcore is the public surface. Persistence is reached only through the
// narrow store interfaces ([UserStore], [RefreshTokenStore], [MFAStore],
// audit.Store, tokenstore.Store); in-tree implementations live under
// store/ and tokenstore/. Outbound email/SMS goes through notify and is
// always fire-and-forget: a failed send never aborts an auth flow.
//
// # What this package must NOT do
//
//   - Surface infrastructure failures as authentication failures.
//   - Reveal whether an identifier exists on login or password-reset paths.
//   - Let audit logging failures propagate to the caller.
package authcore
