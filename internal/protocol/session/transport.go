package session

import "context"

// MessageType distinguishes binary frames from bare text payloads.
type MessageType int

const (
	MessageBinary MessageType = iota + 1
	MessageText
)

func (t MessageType) String() string {
	switch t {
	case MessageBinary:
		return "binary"
	case MessageText:
		return "text"
	default:
		return "unknown"
	}
}

// Transport opens message-oriented connections to an endpoint.
type Transport interface {
	Name() string
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Conn is one live connection. ReadMessage is called from a single goroutine;
// WriteMessage calls are serialized by the Manager. Close may be called
// concurrently with both and must unblock ReadMessage. A peer-initiated
// normal close is reported as an error wrapping ErrClosedByPeer.
type Conn interface {
	ReadMessage() (MessageType, []byte, error)
	WriteMessage(ctx context.Context, t MessageType, data []byte) error
	Close() error
}
