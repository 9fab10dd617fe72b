package binding

import (
	"errors"

	"llamabind/internal/engine"
)

// Kind classifies binding failures.
type Kind int

const (
	KindUnknown Kind = iota
	ConfigInvalid
	ModelLoadFailure
	StateSizeMismatch
	ShortRead
	ShortWrite
	Unsupported
	HandleClosed
	IOFailure
	EngineFailure
)

func (k Kind) String() string {
	switch k {
	case ConfigInvalid:
		return "config_invalid"
	case ModelLoadFailure:
		return "model_load_failure"
	case StateSizeMismatch:
		return "state_size_mismatch"
	case ShortRead:
		return "short_read"
	case ShortWrite:
		return "short_write"
	case Unsupported:
		return "unsupported"
	case HandleClosed:
		return "handle_closed"
	case IOFailure:
		return "io_failure"
	case EngineFailure:
		return "engine_failure"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by this package.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func newError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	s := e.Msg
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same Kind, so errors.Is(err, ErrShortRead)
// works for any short read regardless of Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Msg == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrConfigInvalid     = &Error{Kind: ConfigInvalid}
	ErrModelLoadFailure  = &Error{Kind: ModelLoadFailure}
	ErrStateSizeMismatch = &Error{Kind: StateSizeMismatch}
	ErrShortRead         = &Error{Kind: ShortRead}
	ErrShortWrite        = &Error{Kind: ShortWrite}
	ErrUnsupported       = &Error{Kind: Unsupported}
	ErrHandleClosed      = &Error{Kind: HandleClosed}
)

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsConfigInvalid reports whether err stems from a malformed configuration.
func IsConfigInvalid(err error) bool { return KindOf(err) == ConfigInvalid }

// IsModelLoadFailure reports whether the engine failed to load the model.
func IsModelLoadFailure(err error) bool { return KindOf(err) == ModelLoadFailure }

// IsStateSizeMismatch reports whether a state buffer did not fit the context.
func IsStateSizeMismatch(err error) bool { return KindOf(err) == StateSizeMismatch }

// IsShortIO reports a short read or short write.
func IsShortIO(err error) bool {
	k := KindOf(err)
	return k == ShortRead || k == ShortWrite
}

// IsUnsupported reports whether a disabled capability was requested.
func IsUnsupported(err error) bool { return KindOf(err) == Unsupported }

// IsHandleClosed reports use of a destroyed BoundModel.
func IsHandleClosed(err error) bool { return KindOf(err) == HandleClosed }

// IsEngineUnavailable reports whether the engine is not compiled in.
func IsEngineUnavailable(err error) bool {
	return KindOf(err) == EngineFailure && errors.Is(err, engine.ErrUnavailable)
}
