package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

// LoadFailure classifies why a load failed. Callers that only need to know
// "analyzer X could not be loaded" can ignore it and match on *LoadError.
type LoadFailure string

// Load failure reasons.
const (
	FailureUnknown       LoadFailure = "unknown"
	FailureNonconforming LoadFailure = "nonconforming"
	FailureConstruct     LoadFailure = "construct"
	FailurePanic         LoadFailure = "panic"
	FailureNil           LoadFailure = "nil"
	FailureCycle         LoadFailure = "cycle"
)

// LoadError is returned for every failed Load, whatever the underlying cause.
// The cause, when there is one, is kept for diagnostics and reachable via
// errors.Unwrap; a failed delegate load wraps the delegate's own LoadError.
type LoadError struct {
	Name      string
	Reason    LoadFailure
	Chain     []string // construction path ending at Name
	Available []string // set for FailureUnknown
	Err       error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot load analyzer %q", e.Name)

	switch e.Reason {
	case FailureUnknown:
		fmt.Fprintf(&b, ": not registered (available: %v)", e.Available)
	case FailureNonconforming:
		b.WriteString(": constructed value does not implement Analyzer")
	case FailureNil:
		b.WriteString(": constructor returned nil")
	case FailureCycle:
		fmt.Fprintf(&b, ": delegation cycle %s", strings.Join(e.Chain, " -> "))
	case FailurePanic:
		b.WriteString(": constructor panicked")
	case FailureConstruct:
		b.WriteString(": construction failed")
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// AnalysisError is returned by Process when an analyzer cannot handle its input.
type AnalysisError struct {
	Analyzer string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzer %q: %v", e.Analyzer, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Failf builds an AnalysisError for the named analyzer.
func Failf(name, format string, args ...any) error {
	return &AnalysisError{Analyzer: name, Err: fmt.Errorf(format, args...)}
}

// Fail wraps err as an AnalysisError for the named analyzer.
// Errors that already are AnalysisErrors, such as those coming back from
// a delegate, are returned unchanged so the originating analyzer is kept.
func Fail(name string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return err
	}
	return &AnalysisError{Analyzer: name, Err: err}
}
