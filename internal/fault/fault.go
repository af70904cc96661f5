// Package fault defines the tagged error kinds shared across mailtriage.
// Callers branch on Kind via KindOf or the Is* helpers instead of matching
// error types.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers that need to branch on it.
type Kind int

const (
	// KindInternal is the catch-all for failures with no better home.
	KindInternal Kind = iota
	// KindParameter marks invalid caller input (missing handle, empty id).
	KindParameter
	// KindStorage marks rule persistence I/O or parse failures.
	KindStorage
	// KindNotFound marks a rule lookup miss.
	KindNotFound
	// KindAPI marks a remote Gmail service failure.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindStorage:
		return "storage"
	case KindNotFound:
		return "not_found"
	case KindAPI:
		return "api"
	default:
		return "internal"
	}
}

// Error is a failure tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with a literal message and no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and operation. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of the nearest *Error in err's chain,
// or KindInternal when none is present.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsParameter reports whether err is tagged KindParameter.
func IsParameter(err error) bool { return is(err, KindParameter) }

// IsStorage reports whether err is tagged KindStorage.
func IsStorage(err error) bool { return is(err, KindStorage) }

// IsNotFound reports whether err is tagged KindNotFound.
func IsNotFound(err error) bool { return is(err, KindNotFound) }

// IsAPI reports whether err is tagged KindAPI.
func IsAPI(err error) bool { return is(err, KindAPI) }

func is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
