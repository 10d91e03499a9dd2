package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure by the scope it affects.
type Kind string

const (
	KindConfig       Kind = "CONFIG"
	KindScan         Kind = "SCAN"
	KindResolution   Kind = "RESOLUTION"
	KindArchive      Kind = "ARCHIVE"
	KindTransfer     Kind = "TRANSFER"
	KindTimeout      Kind = "TIMEOUT"
	KindNotification Kind = "NOTIFICATION"
	KindCanceled     Kind = "CANCELED"
	KindLocked       Kind = "LOCKED"
)

// Error is a classified failure. Fatal errors must not be retried.
type Error struct {
	Kind  Kind
	Op    string
	Err   error
	Fatal bool
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// NewFatal returns an error that retry loops give up on immediately.
func NewFatal(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err, Fatal: true}
}

// KindOf reports the kind of the first classified error in err's chain.
// Context errors are mapped to TIMEOUT and CANCELED when unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsFatal(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Fatal
	}
	return false
}

// FromContext converts a finished context into a TIMEOUT or CANCELED error.
// It returns nil while the context is still live.
func FromContext(ctx context.Context, op string) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return New(KindTimeout, op, ctx.Err())
	default:
		return New(KindCanceled, op, ctx.Err())
	}
}
