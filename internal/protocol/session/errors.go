package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected  = errors.New("session: not connected")
	ErrClosedByPeer  = errors.New("session: connection closed by peer")
	ErrManagerClosed = errors.New("session: manager closed")
	ErrRetriesSpent  = errors.New("session: connect attempts exhausted")
)

// NotConnectedError is returned by Send outside the Open state.
type NotConnectedError struct {
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("session: not connected (state=%s)", e.State)
}

func (e *NotConnectedError) Unwrap() error { return ErrNotConnected }

// TransportError wraps a dial, read or write fault of the underlying
// connection.
type TransportError struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
