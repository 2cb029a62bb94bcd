package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedJSON     = errors.New("malformed json")
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidField      = errors.New("invalid field value")
	ErrUnknownPacketType = errors.New("unknown packet type")
	ErrInvalidID         = errors.New("invalid message id")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrNilPacket         = errors.New("nil packet")
)

// maxErrorLine caps how much of the offending line is kept in a DecodeError
const maxErrorLine = 256

// DecodeError describes a line that could not be turned into a packet.
// It only affects that line; the stream it came from is still usable.
type DecodeError struct {
	Line  string // offending input, truncated
	Field string // field being decoded, empty for whole-line failures
	Err   error
}

func newDecodeError(line []byte, field string, err error) *DecodeError {
	s := string(line)
	if len(s) > maxErrorLine {
		s = s[:maxErrorLine] + "..."
	}
	return &DecodeError{Line: s, Field: field, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode packet: field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("decode packet: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err (or anything it wraps) is a *DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
