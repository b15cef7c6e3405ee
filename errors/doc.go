// Package errors provides structured error types for nativeguard.
//
// Errors are categorized by Phase (where in the handle lifecycle the error occurred)
// and Kind (error category). The Error type carries the expected and actual type
// names for classification faults, an optional path, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Expected("nativeguard/Box").
//		Actual("msgctx/Context").
//		Detail("box argument").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ClassCast(errors.PhaseMarshal, "not a box", "nativeguard/Box", actual)
//	err := errors.NotFound(errors.PhaseResolve, "handle")
//
// Contract violations (integrity marker mismatch, missing release function) are not
// returned; they panic with an *Error of kind corrupted or nil_pointer.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
