// Package dcerr defines the error-kind vocabulary shared by every layer of
// the dive computer download engine. It plays the same role for divelog
// that error.go's small Error type plays for the serial package it was
// grown from: one wrapping error type, consulted with errors.Is/errors.As,
// instead of a zoo of sentinel values per package.
package dcerr

import "fmt"

// Kind classifies an Error. Propagation policy (spec §7): L1 faults surface
// as IO/Timeout, L2 recovers Timeout/Protocol by retry, L3/L4 never retry
// and surface L2 errors verbatim except that a DataFormat error seen after
// at least one dive was delivered is downgraded to a warning by ring.Walk.
type Kind int

const (
	// Other is the zero value; used only for errors that don't fit a kind.
	Other Kind = iota

	// InvalidArgs: a precondition on an operation's arguments was violated
	// (unaligned address, wrong buffer size, nonsensical parameter).
	InvalidArgs

	// NoMemory: allocation failed.
	NoMemory

	// IO: transport-level failure (closed port, OS error).
	IO

	// Timeout: a bounded blocking operation exceeded its deadline.
	Timeout

	// Protocol: a framing, echo, length, or checksum check failed.
	Protocol

	// DataFormat: on-device bytes are inconsistent (out-of-range pointer,
	// bad sentinel).
	DataFormat

	// Unsupported: an operation is not provided by this family or transport.
	Unsupported

	// Cancelled: the session's cancel flag was observed.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidArgs:
		return "invalid arguments"
	case NoMemory:
		return "out of memory"
	case IO:
		return "i/o error"
	case Timeout:
		return "timeout"
	case Protocol:
		return "protocol error"
	case DataFormat:
		return "data format error"
	case Unsupported:
		return "unsupported"
	case Cancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// Error is the concrete error type returned by every divelog package. Op
// names the failing operation (e.g. "framing.Transfer", "ring.Walk") the way
// the teacher's Error{msg, err} names the failing call; Err, when non-nil,
// is the underlying cause and is reachable through Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, dcerr.ErrTimeout) (and the other kind sentinels
// below) match any *Error of the same Kind, regardless of Op or the
// wrapped cause.
func (e *Error) Is(target error) bool {
	s, ok := target.(*sentinel)
	return ok && s.kind == e.Kind
}

// New builds an *Error of the given kind for op, wrapping err (which may be
// nil).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is New with a formatted underlying error, mirroring the teacher's
// wrapErr helper.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// sentinel is the comparison target for errors.Is(err, dcerr.ErrProtocol) and
// its siblings; it carries no Op or cause, just a Kind to match against.
type sentinel struct{ kind Kind }

func (s *sentinel) Error() string { return s.kind.String() }

var (
	ErrInvalidArgs = &sentinel{InvalidArgs}
	ErrNoMemory    = &sentinel{NoMemory}
	ErrIO          = &sentinel{IO}
	ErrTimeout     = &sentinel{Timeout}
	ErrProtocol    = &sentinel{Protocol}
	ErrDataFormat  = &sentinel{DataFormat}
	ErrUnsupported = &sentinel{Unsupported}
	ErrCancelled   = &sentinel{Cancelled}
)

// KindOf extracts the Kind of err if it is (or wraps) a *Error, otherwise
// Other.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return Other
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
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
