package miai

import (
	"errors"
	"fmt"
)

// The client distinguishes three remote failure kinds: the transport failed,
// the service rejected the credentials, or the service accepted the request
// format but refused the operation. Local decode failures are a fourth kind.

// ErrNotConnected is returned when an operation requires a session but
// neither login nor restore has completed.
var ErrNotConnected = errors.New("miai: not connected, login or restore a session first")

// ErrNoDeviceAvailable is returned when device selection runs against an
// empty device list.
var ErrNoDeviceAvailable = errors.New("miai: no device available")

// AuthError means the account service rejected the credentials or the device
// service rejected an expired token. Never retried automatically; callers
// re-login explicitly.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("miai: authentication rejected (code %d): %s", e.Code, e.Message)
}

// RemoteError means the service understood the request but refused the
// operation. Carries the remote status and message; not retried.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("miai: remote rejected operation (code %d): %s", e.Code, e.Message)
}

// NetworkError wraps a transport-level failure. Retried only inside the
// status polling loop, never for one-shot calls.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("miai: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// DecodeError means the reply payload was not well formed.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("miai: decoding %s reply: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
