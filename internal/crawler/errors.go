package crawler

import (
	"context"
	"errors"
	"fmt"
)

// Site-scoped failure kinds. A StepError matches exactly one of them with
// errors.Is.
var (
	ErrBrowser          = errors.New("browser unavailable")
	ErrNavigation       = errors.New("navigation failed")
	ErrTimeout          = errors.New("timed out")
	ErrSelectorNotFound = errors.New("selector not found")
	ErrExtraction       = errors.New("extraction failed")
)

// StepError is a failure of one scrape step.
type StepError struct {
	SiteID string
	State  State
	Kind   error
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.State, e.Kind, e.Err)
}

func (e *StepError) Is(target error) bool { return target == e.Kind }

func (e *StepError) Unwrap() error { return e.Err }

// classify picks the failure kind for err. A deadline maps to onDeadline,
// a cancelled parent context is reported as such, anything else as kind.
func classify(err, onDeadline, kind error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return onDeadline
	case errors.Is(err, context.Canceled):
		return context.Canceled
	default:
		return kind
	}
}
