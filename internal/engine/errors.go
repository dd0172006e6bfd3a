package engine

import (
	"errors"
	"fmt"
)

// ErrMissingEntryPoint means the module loaded but does not export the
// kernel entry point.
var ErrMissingEntryPoint = errors.New("missing entry point")

// CompilationError is a program the compiler or the driver refused. Log is
// the diagnostic output, verbatim.
type CompilationError struct {
	Log string
}

func (e *CompilationError) Error() string {
	return "compilation failed: " + e.Log
}

// UnexpectedCompilationSuccessError is an invalid program that compiled.
type UnexpectedCompilationSuccessError struct {
	Name string
}

func (e *UnexpectedCompilationSuccessError) Error() string {
	return "compilation unexpectedly succeeded for " + e.Name
}

// MismatchError reports the first element where the device and the host
// disagree. Total and Passed count the elements checked before the test
// stopped.
type MismatchError struct {
	Input    string
	Output   string
	Expected string
	Total    uint64
	Passed   uint64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("Input %s, computed on GPU %s, computed on CPU %s (passed %d/%d)",
		e.Input, e.Output, e.Expected, e.Passed, e.Total)
}

// IsTestFailure reports whether err is a verdict on the instruction under
// test rather than a broken environment.
func IsTestFailure(err error) bool {
	var (
		compile *CompilationError
		success *UnexpectedCompilationSuccessError
		mis     *MismatchError
	)
	return errors.As(err, &compile) || errors.As(err, &success) || errors.As(err, &mis) ||
		errors.Is(err, ErrMissingEntryPoint)
}
