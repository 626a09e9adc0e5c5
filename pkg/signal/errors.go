package signal

import "errors"

// Sentinel errors for the signal package.
var (
	// ErrTypeCycle is returned when a declared derivation would make a type
	// its own ancestor.
	ErrTypeCycle = errors.New("signal type hierarchy would contain a cycle")

	// ErrNilView is returned when Derive is called without a view function.
	ErrNilView = errors.New("signal view function cannot be nil")

	// ErrNilHandler is the panic value of callback constructors given a nil function.
	ErrNilHandler = errors.New("signal handler cannot be nil")

	// ErrSignalType is returned by a relay that received a value of the wrong type.
	ErrSignalType = errors.New("signal does not match callback type")

	// ErrHandlerPanic matches every PanicError.
	ErrHandlerPanic = errors.New("signal handler panicked")
)

// HandlerError wraps a failure of one callback during a broadcast.
type HandlerError struct {
	// Slot is the name of the emitting slot.
	Slot string

	// SlotType is the signal type name of the emitting slot.
	SlotType string

	// Callback is the name of the failing callback.
	Callback string

	// CallbackType is the signal type name the callback was declared for.
	CallbackType string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "signal: handler " + e.Callback + " on slot " + e.Slot + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "handler panicked: " + formatPanic(e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
