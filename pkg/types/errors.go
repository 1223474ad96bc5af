package types

import "errors"

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindInvalidArgument ErrKind = iota // unsupported domain, unknown VMID, bad size
	ErrKindNoMemory                       // decomposition or backing allocation failed
	ErrKindOwnership                      // ownership-transfer authority rejected a call
	ErrKindState                          // invalid operation for current state (e.g., closed heap)
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindInvalidArgument:
		return "invalid-argument"
	case ErrKindNoMemory:
		return "no-memory"
	case ErrKindOwnership:
		return "ownership"
	case ErrKindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinels commonly returned by implementations.
var (
	// ErrNoMemory indicates no order satisfied the remaining size, or every
	// attempted system allocation failed.
	ErrNoMemory = &Error{Kind: ErrKindNoMemory, Msg: "out of memory"}
	// ErrTooLarge indicates a single request larger than half of system memory.
	ErrTooLarge = &Error{Kind: ErrKindNoMemory, Msg: "request exceeds half of system memory"}
	// ErrSecureUnsupported indicates a secure allocation on a heap that cannot serve one.
	ErrSecureUnsupported = &Error{Kind: ErrKindInvalidArgument, Msg: "heap does not support secure allocations"}
	// ErrInvalidVMID indicates an unrecognized secure domain id.
	ErrInvalidVMID = &Error{Kind: ErrKindInvalidArgument, Msg: "invalid secure vmid"}
	// ErrInvalidSize indicates a zero or negative request size.
	ErrInvalidSize = &Error{Kind: ErrKindInvalidArgument, Msg: "invalid request size"}
	// ErrOwnershipTransfer indicates the ownership authority rejected an assign or unassign.
	ErrOwnershipTransfer = &Error{Kind: ErrKindOwnership, Msg: "ownership transfer failed"}
	// ErrBadFree indicates a buffer that was already freed or never allocated by this heap.
	ErrBadFree = &Error{Kind: ErrKindState, Msg: "buffer not owned by heap"}
	// ErrNoPoolSet indicates a request for a domain whose pool set does not exist.
	ErrNoPoolSet = &Error{Kind: ErrKindInvalidArgument, Msg: "no pool set for domain"}
	// ErrPoolSetExists indicates creating a pool set for a domain that already has one.
	ErrPoolSetExists = &Error{Kind: ErrKindState, Msg: "pool set already exists"}
	// ErrClosed indicates an operation on a heap that has been closed.
	ErrClosed = &Error{Kind: ErrKindState, Msg: "heap is closed"}
)

// Wrap returns a new Error of the same kind as sentinel that carries cause.
// errors.Is(result, sentinel) and errors.Is(result, cause) both hold.
func Wrap(sentinel *Error, cause error) error {
	return &wrapped{e: Error{Kind: sentinel.Kind, Msg: sentinel.Msg, Err: cause}, sentinel: sentinel}
}

type wrapped struct {
	e        Error
	sentinel *Error
}

func (w *wrapped) Error() string { return w.e.Error() }

func (w *wrapped) Unwrap() error { return w.e.Err }

func (w *wrapped) Is(target error) bool { return target == w.sentinel }

func (w *wrapped) As(target any) bool {
	if p, ok := target.(**Error); ok {
		*p = &w.e
		return true
	}
	return false
}

// KindOf reports the category of err, if err wraps an *Error.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
