package search

import (
	"errors"
	"fmt"
)

// Error codes for classified search errors.
const (
	ErrCodeEmptyFrontier    = "EMPTY_FRONTIER"
	ErrCodeInvalidProblem   = "INVALID_PROBLEM"
	ErrCodeInvalidCost      = "INVALID_COST"
	ErrCodeInvalidOption    = "INVALID_OPTION"
	ErrCodeInapplicable     = "INAPPLICABLE_OPERATOR"
	ErrCodeMissingHeuristic = "MISSING_HEURISTIC"
	ErrCodeCanceled         = "CANCELED"
	ErrCodeRunFinished      = "RUN_FINISHED"
)

// Error is a classified search error.
//
// No-solution is never reported as an Error: a search that exhausts its
// frontier returns a nil solution and a nil error.
type Error struct {
	// Code identifies the failure for programmatic handling.
	Code string `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Strategy is the name of the search strategy that failed, if known.
	Strategy string `json:"strategy,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`

	// Details contains additional context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Strategy != "" {
		msg = fmt.Sprintf("%s (strategy=%s)", msg, e.Strategy)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Code, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new classified error.
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithStrategy adds the strategy name to an error.
func (e *Error) WithStrategy(name string) *Error {
	e.Strategy = name
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinel errors, matched by code through errors.Is.
var (
	ErrEmptyFrontier    = &Error{Code: ErrCodeEmptyFrontier, Message: "remove from empty frontier"}
	ErrInvalidProblem   = &Error{Code: ErrCodeInvalidProblem, Message: "invalid problem"}
	ErrInvalidCost      = &Error{Code: ErrCodeInvalidCost, Message: "invalid operator cost"}
	ErrInapplicable     = &Error{Code: ErrCodeInapplicable, Message: "operator not applicable"}
	ErrMissingHeuristic = &Error{Code: ErrCodeMissingHeuristic, Message: "heuristic required"}
	ErrCanceled         = &Error{Code: ErrCodeCanceled, Message: "search canceled"}
	ErrRunFinished      = &Error{Code: ErrCodeRunFinished, Message: "run already finished"}
)

// IsEmptyFrontier returns true if err is an empty-frontier contract violation.
func IsEmptyFrontier(err error) bool {
	return hasCode(err, ErrCodeEmptyFrontier)
}

// IsCanceled returns true if the search was stopped through its context.
func IsCanceled(err error) bool {
	return hasCode(err, ErrCodeCanceled)
}

// IsContractViolation returns true for errors caused by a broken caller or
// domain contract rather than by the search itself.
func IsContractViolation(err error) bool {
	return hasCode(err, ErrCodeEmptyFrontier) ||
		hasCode(err, ErrCodeInvalidProblem) ||
		hasCode(err, ErrCodeInvalidCost) ||
		hasCode(err, ErrCodeMissingHeuristic)
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
