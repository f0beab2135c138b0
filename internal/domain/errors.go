package domain

import (
	"errors"
	"fmt"
)

type AuthFailure string

const (
	AuthInvalidCredentials AuthFailure = "INVALID_CREDENTIALS"
	AuthTwoFactorRequired  AuthFailure = "TWO_FACTOR_REQUIRED"
	AuthServerUnreachable  AuthFailure = "SERVER_UNREACHABLE"
	AuthServerTooOld       AuthFailure = "SERVER_TOO_OLD"
)

// AuthError is terminal for the current credential set. It is surfaced to
// the operator and never retried automatically beyond a single re-auth
// attempt.
type AuthError struct {
	Reason  AuthFailure
	Message string
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("auth failed (%s): %s", e.Reason, e.Message)
}

type TransportFailure string

const (
	TransportTimeout      TransportFailure = "TIMEOUT"
	TransportUnauthorized TransportFailure = "UNAUTHORIZED"
	TransportUnreachable  TransportFailure = "UNREACHABLE"
)

// TransportError is transient: it is absorbed into the health failure
// counter and the next tick is the retry mechanism.
type TransportError struct {
	Kind TransportFailure
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *TransportError) Unwrap() error { return e.Err }

type CommandFailure string

const (
	CommandSessionGone CommandFailure = "SESSION_GONE"
	CommandRejected    CommandFailure = "REJECTED"
	CommandUnreachable CommandFailure = "UNREACHABLE"
)

// CommandError is scoped to a single command; it is reported to the host
// runtime and never crashes the reconciliation loop.
type CommandError struct {
	Kind      CommandFailure
	SessionID string
	Err       error
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("command to session %s: %s: %v", e.SessionID, e.Kind, e.Err)
	}
	return fmt.Sprintf("command to session %s: %s", e.SessionID, e.Kind)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ErrNoActiveSession is returned when a command targets an entity whose
// binding has no live session. The host runtime treats it as a no-op.
var ErrNoActiveSession = errors.New("no active session for entity")

// IsUnauthorized reports whether err is a transport-level auth rejection,
// which triggers exactly one re-authentication attempt by the caller.
func IsUnauthorized(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == TransportUnauthorized
}

// IsTransient reports whether err should be absorbed into the health
// failure counter rather than surfaced.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
