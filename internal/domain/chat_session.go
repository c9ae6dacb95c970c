package domain

import (
	"fmt"
	"time"
)

// SessionState enumerates where a chat identity sits within a multi-turn flow.
// It is a closed set: rows holding anything else fail at scan time rather than
// leaking an unknown state into the engine.
type SessionState string

const (
	// StateIdle is the resting state: no flow in progress.
	StateIdle SessionState = "idle"
	// StateAwaitingRegistration waits for the handle of a new account.
	StateAwaitingRegistration SessionState = "awaiting_registration"
	// StateAwaitingLoginHandle waits for the handle to log in with.
	StateAwaitingLoginHandle SessionState = "awaiting_login_username"
	// StateAwaitingLoginSecret waits for the password of the pending handle.
	StateAwaitingLoginSecret SessionState = "awaiting_login_password"
	// StateAwaitingOldSecret waits for the current password before a change.
	StateAwaitingOldSecret SessionState = "awaiting_old_password"
	// StateAwaitingNewSecret waits for the replacement password.
	StateAwaitingNewSecret SessionState = "awaiting_new_password"
)

// ParseSessionState validates a raw state string from storage.
func ParseSessionState(raw string) (SessionState, error) {
	switch s := SessionState(raw); s {
	case StateIdle, StateAwaitingRegistration,
		StateAwaitingLoginHandle, StateAwaitingLoginSecret,
		StateAwaitingOldSecret, StateAwaitingNewSecret:
		return s, nil
	default:
		return "", fmt.Errorf("unknown session state %q", raw)
	}
}

// ChatSession binds a chat identity to an optional linked account and its
// current conversation state. One row per chat identity, rewritten whole on
// every transition. Absence of a row means the identity has never been seen.
type ChatSession struct {
	ChatID        int64
	AccountID     string // empty until login or registration succeeds
	State         SessionState
	PendingHandle string // scratch value, e.g. a handle entered but not yet verified
	LastUpdateID  int64  // highest inbound update id seen, for redelivery dedup
	LastActivity  time.Time
}

// Linked reports whether the session is bound to an account.
func (s *ChatSession) Linked() bool {
	return s.AccountID != ""
}
