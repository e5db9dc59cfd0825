package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPayload = errors.New("protocol: malformed payload")
	ErrMissingKind      = errors.New("protocol: missing kind discriminant")
	ErrInvalidKind      = errors.New("protocol: invalid kind discriminant")
	ErrUnsupportedKind  = errors.New("protocol: unsupported request kind")
)

// EncodingError reports a request that could not be turned into a frame.
type EncodingError struct {
	Kind Kind
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("protocol: encode %s: %v", e.Kind, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports an inbound payload that could not be interpreted.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("protocol: decode: %v", e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

func decodeErr(sentinel error, detail error) error {
	if detail == nil {
		return &DecodingError{Err: sentinel}
	}
	return &DecodingError{Err: fmt.Errorf("%w: %v", sentinel, detail)}
}
