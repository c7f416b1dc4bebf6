package framework

import (
	"fmt"
	"strings"
)

// ComponentError attributes an error to the component which returned it.
type ComponentError struct {
	Component string
	Err       error
}

// Error implements error.
func (e *ComponentError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ComponentError) Unwrap() error {
	return e.Err
}

// AggregatedError collects the failures of several components, e.g. the
// runnables of a Runner or the lines released at detach.
type AggregatedError struct {
	Errors []error
}

// Error implements error
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msg := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msg[n] = err.Error()
	}
	return fmt.Sprintf("%d failures: %s", len(e.Errors), strings.Join(msg, "; "))
}

// Add adds errors to be aggregated. nil will be skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// AddFrom adds err as a ComponentError of component. nil will be skipped.
func (e *AggregatedError) AddFrom(component string, err error) *AggregatedError {
	if err != nil {
		e.Errors = append(e.Errors, &ComponentError{Component: component, Err: err})
	}
	return e
}

// Aggregate returns aggregated error if any error happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Unwrap exposes the aggregated errors to errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}
