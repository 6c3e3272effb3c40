package generate

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sony/gobreaker"
)

type Kind string

const (
	KindStatus      Kind = "status"
	KindTimeout     Kind = "timeout"
	KindNetwork     Kind = "network"
	KindMalformed   Kind = "malformed"
	KindUnavailable Kind = "unavailable"
	KindRateLimited Kind = "rate_limited"
)

// Error is a failed generation call.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("generate %s (%d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("generate %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrEmptyReply is returned when the service answers without any text.
var ErrEmptyReply = errors.New("empty reply")

// AsError returns err as an *Error, classifying it if it is not one
// already. nil stays nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &Error{Kind: KindUnavailable, Err: err}
	case errors.Is(err, ErrEmptyReply):
		return &Error{Kind: KindMalformed, Err: err}
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	default:
		return &Error{Kind: KindStatus, Err: err}
	}
}

// KindOf returns the kind of err, or "" for nil.
func KindOf(err error) Kind {
	if ge := AsError(err); ge != nil {
		return ge.Kind
	}
	return ""
}

var apologies = map[Kind]string{
	KindTimeout:     "Sorry, my brain took too long on that one. Try again in a bit.",
	KindNetwork:     "Sorry, I couldn't reach my brain just now. Try again in a bit.",
	KindMalformed:   "Sorry, I had trouble understanding the response.",
	KindUnavailable: "Sorry, I'm having a moment. Give me a minute and try again.",
	KindRateLimited: "Whoa, too many messages at once. Give me a second.",
}

const defaultApology = "Sorry, something went wrong while I was thinking."

// Apology is the user-facing placeholder for a failed generation.
func Apology(err error) string {
	if msg, ok := apologies[KindOf(err)]; ok {
		return msg
	}
	return defaultApology
}
