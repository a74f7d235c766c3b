package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session lookup references an
	// identifier with no live session. Sessions are never created implicitly.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserIDRequired is returned when a connect request is missing the user identifier.
	ErrUserIDRequired = errors.New("user id is required")

	// ErrMemberNotFound is returned when an operation references a user that is
	// not a member of the session.
	ErrMemberNotFound = errors.New("member not found")

	// ErrSessionClosed is returned when an operation targets a hub that has
	// already been shut down.
	ErrSessionClosed = errors.New("session closed")
)
