package glshim

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrUnsupported is returned by operations the emulated feature set
	// does not model, such as binary shader cache load/save.
	ErrUnsupported = errors.New("glshim: operation unsupported")

	// ErrOutOfMemory is returned when a uniform block buffer cannot be
	// allocated on the device.
	ErrOutOfMemory = errors.New("glshim: out of memory")

	// ErrNotLinked is returned by draw and uniform operations on a
	// program that has no successful link.
	ErrNotLinked = errors.New("glshim: program is not linked")

	// ErrNilDevice is returned when a constructor is given a nil device.
	ErrNilDevice = errors.New("glshim: device is nil")
)

// TranslationError reports a failed or empty shader translation.
// It is distinct from CompileError: translation happens entirely on
// the CPU, before the native driver sees any code.
type TranslationError struct {
	Stage Stage
	// Detail describes what the translator rejected.
	Detail string
	// Err is the underlying backend error, if any.
	Err error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("glshim: %s translation failed: %s: %v", e.Stage, e.Detail, e.Err)
	}
	return fmt.Sprintf("glshim: %s translation failed: %s", e.Stage, e.Detail)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// CompileError reports rejection of translated code by the native
// driver. Diagnostics carries the driver's message text verbatim.
type CompileError struct {
	Stage       Stage
	Diagnostics string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("glshim: %s module compilation failed: %s", e.Stage, e.Diagnostics)
}

// internalf panics with an internal-consistency message. Used for
// invariant violations that indicate a logic defect between the layout
// encoder and the translator, never for user errors.
func internalf(format string, args ...any) {
	panic(fmt.Sprintf("glshim: internal: "+format, args...))
}
