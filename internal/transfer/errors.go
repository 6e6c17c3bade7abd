package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrChannelClosed     = errors.New("channel closed before completion")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrTimeout           = errors.New("step timed out")
	ErrCancelled         = errors.New("transfer cancelled")
	ErrConnectFailed     = errors.New("could not open channel")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidDecision   = errors.New("session is not awaiting a decision")
)

// Failure reasons surfaced to the user.
const (
	ReasonConnectionLost = "connection lost"
	ReasonIncomplete     = "connection lost before completion"
	ReasonTimeout        = "timeout"
	ReasonSourceRead     = "source read error"
	ReasonCancelled      = "cancelled"
	ReasonConnectFailed  = "connection failed"
	ReasonDeclined       = "declined"
)

// SourceReadError reports that the local file could not be read.
type SourceReadError struct {
	Offset int64
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read source at offset %d: %v", e.Offset, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
