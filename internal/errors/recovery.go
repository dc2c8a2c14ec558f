package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error recovered from a panic
type PanicError struct {
	Value      interface{} // The panic value
	Stacktrace string      // Full stack trace
}

// Error implements the error interface
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// NewPanicError wraps a recovered panic value with the current stack trace.
// Call from a deferred function after recover(), e.g. around sweep cycles so
// a single bad cycle cannot take the background scheduler down:
//
//	defer func() {
//		if r := recover(); r != nil {
//			err = errors.NewPanicError(r)
//		}
//	}()
func NewPanicError(value interface{}) *PanicError {
	return &PanicError{
		Value:      value,
		Stacktrace: string(debug.Stack()),
	}
}

// FormatPanicForLog returns a formatted string suitable for logging
func FormatPanicForLog(panicErr *PanicError) string {
	return fmt.Sprintf("PANIC: %v\n\nStack Trace:\n%s", panicErr.Value, panicErr.Stacktrace)
}
