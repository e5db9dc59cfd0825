// Package frame owns the length-prefixed wire frame: a 2-byte big-endian
// unsigned length followed by exactly that many payload bytes.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderLen is the size of the length prefix.
	HeaderLen = 2
	// MaxPayloadLen is the largest payload a frame can carry.
	MaxPayloadLen = math.MaxUint16
)

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrNegativeLength  = errors.New("frame: negative length")
	ErrShortFrame      = errors.New("frame: short length prefix")
	ErrTruncated       = errors.New("frame: truncated payload")
)

// PutLength writes n into dst[0:2] in big-endian order.
func PutLength(dst []byte, n int) error {
	if len(dst) < HeaderLen {
		return ErrShortFrame
	}
	if n < 0 {
		return ErrNegativeLength
	}
	if n > MaxPayloadLen {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}
	binary.BigEndian.PutUint16(dst[0:HeaderLen], uint16(n&0xFFFF))
	return nil
}

// Length reads the big-endian length prefix from src[0:2].
func Length(src []byte) (uint16, error) {
	if len(src) < HeaderLen {
		return 0, ErrShortFrame
	}
	return binary.BigEndian.Uint16(src[0:HeaderLen]) & 0xFFFF, nil
}

// Encode prefixes payload with its length.
func Encode(payload []byte) ([]byte, error) {
	out := make([]byte, HeaderLen+len(payload))
	if err := PutLength(out, len(payload)); err != nil {
		return nil, err
	}
	copy(out[HeaderLen:], payload)
	return out, nil
}

// Decode splits b into the payload named by its length prefix and whatever
// follows it. Bytes past the declared length are never part of payload.
func Decode(b []byte) (payload, rest []byte, err error) {
	n, err := Length(b)
	if err != nil {
		return nil, nil, err
	}
	end := HeaderLen + int(n)
	if len(b) < end {
		return nil, nil, fmt.Errorf("%w: want %d bytes, have %d", ErrTruncated, n, len(b)-HeaderLen)
	}
	payload = make([]byte, n)
	copy(payload, b[HeaderLen:end])
	if len(b) > end {
		rest = b[end:]
	}
	return payload, rest, nil
}

func ReadFrame(r io.Reader) ([]byte, error) {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}
	n, _ := Length(head[:])
	payload := make([]byte, n)
	if n == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return payload, nil
}

func WriteFrame(w io.Writer, payload []byte) error {
	var head [HeaderLen]byte
	if err := PutLength(head[:], len(payload)); err != nil {
		return err
	}
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}
