package types

import "errors"

// Sentinel errors shared across repositories and engines. Each maps to one
// class of the moderation failure taxonomy: callers decide whether a class is
// swallowed after logging or escalated.
var (
	// Not found: target absent at execution time. Skipped silently by action
	// handlers; escalated by the job store (deletion of an absent job means
	// store corruption).
	ErrUserNotFound = errors.New("user record not found")
	ErrJobNotFound  = errors.New("job not found")

	// Invalid state: the operation does not apply to the target's current
	// state (e.g. unban of a user with no active ban). Skipped silently.
	ErrInvalidState = errors.New("invalid state for operation")

	// Format error: malformed action encoding or unsupported action type.
	// Rejected synchronously at creation time, never stored.
	ErrFormat = errors.New("malformed action")

	// Permission denied: outbound platform call rejected. Logged, never
	// retried, never aborts the owning loop.
	ErrPermissionDenied = errors.New("permission denied by platform")

	// Configuration missing: a referenced threshold or role ID is unset. The
	// dependent behavior is skipped with a warning.
	ErrConfigMissing = errors.New("required configuration is missing")
)
