package model

import "time"

// Session represents a live collaboration session. The mutable code/language
// state is owned by the session's hub; Session itself carries only identity
// and metadata exposed over the API.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Member represents a connected participant within a session. The user ID is
// supplied by the client at connect time and is not authenticated.
type Member struct {
	UserID   string    `json:"user_id"`
	Color    string    `json:"color"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberView is returned to a member on join so it starts synchronized with
// the session's current state.
type MemberView struct {
	Users    []string `json:"users"`
	Code     string   `json:"code"`
	Language string   `json:"language"`
	Color    string   `json:"color"`
}

// SessionInfo is the read-only snapshot served by the session info endpoint.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Users     []string  `json:"users"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}
