package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Construction error codes (E200-E299)
const (
	ErrUnknownReference   = "E201" // dependency names an unknown reference
	ErrUnknownProvider    = "E202" // dependency names an unknown provider
	ErrDuplicateReference = "E203" // two fields declare the same reference
	ErrDuplicateProvider  = "E204" // two providers share one identity
	ErrDependencyCycle    = "E205" // providers depend on themselves transitively
	ErrEagerCycle         = "E206" // a cycle runs through an eager provider
	ErrInitFailed         = "E207" // provider initialization failed
)

// ConstructionError reports why a dialog's dependency graph cannot be built.
// The dialog cannot open when any construction error is present.
type ConstructionError struct {
	Code    string
	Message string

	// Provider is the provider the error is about, if any.
	Provider string

	// Reference is the reference the error is about, if any.
	Reference string

	// Path is the cycle path for cycle errors ("a", "b", "a").
	Path []string
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsConstructionError reports whether err contains a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// ConstructionErrors unpacks every ConstructionError joined into err,
// in the order they were reported.
func ConstructionErrors(err error) []*ConstructionError {
	if err == nil {
		return nil
	}
	var out []*ConstructionError
	var walk func(error)
	walk = func(err error) {
		if ce, ok := err.(*ConstructionError); ok {
			out = append(out, ce)
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		if inner := errors.Unwrap(err); inner != nil {
			walk(inner)
		}
	}
	walk(err)
	return out
}

// HasCode reports whether err contains a ConstructionError with code.
func HasCode(err error, code string) bool {
	for _, ce := range ConstructionErrors(err) {
		if ce.Code == code {
			return true
		}
	}
	return false
}

// ErrButtonTrigger is returned by Resolve for button triggers. Those are
// handled by the button state machine, not by the dependency graph.
var ErrButtonTrigger = errors.New("button triggers are not resolved through the dependency graph")

// ResolutionError reports a trigger that does not match the graph.
// It indicates a caller/graph mismatch rather than a user-data problem.
type ResolutionError struct {
	Kind    string
	Target  string
	Message string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("resolve %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("resolve %s %q: %s", e.Kind, e.Target, e.Message)
}

// IsResolutionError reports whether err is a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

func cycleMessage(path []string) string {
	return strings.Join(path, " -> ")
}
