// Package ferrors defines bulkfetch's error taxonomy. Each fatal
// condition is a Kind attached to a *Error so callers can classify failures
// with errors.Is/errors.As without string matching.
package ferrors

import "fmt"

// Kind enumerates the ways a run can fail.
type Kind string

const (
	ConfigurationInvalid Kind = "CONFIGURATION_INVALID"
	SourceInvalid        Kind = "SOURCE_INVALID"
	SourceParse          Kind = "SOURCE_PARSE"
	SourceIO             Kind = "SOURCE_IO"
	TransformFailed      Kind = "TRANSFORM_FAILED"
	MemoryExceeded       Kind = "MEMORY_EXCEEDED"
)

// Error wraps a Kind with the record/cause that triggered it.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a *Error with the same Kind, so callers can
// write errors.Is(err, ferrors.New(ferrors.SourceParse, "", nil)) or, more
// idiomatically, use Of(err) == ferrors.SourceParse.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a *Error of the given kind.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Of returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var fe *Error
	if ok := asError(err, &fe); ok {
		return fe.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
