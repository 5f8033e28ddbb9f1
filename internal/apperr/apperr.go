// Package apperr defines the application error taxonomy with stable codes.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeInvalidRecurrenceRule Code = "INVALID_RECURRENCE_RULE"
	CodeReminderNotFound      Code = "REMINDER_NOT_FOUND"
	CodeSuggestionNotFound    Code = "SUGGESTION_NOT_FOUND"
	CodeMemberNotFound        Code = "MEMBER_NOT_FOUND"
	CodeEventNotFound         Code = "EVENT_NOT_FOUND"
	CodeTodoNotFound          Code = "TODO_NOT_FOUND"
	CodeAIUnavailable         Code = "AI_UNAVAILABLE"
	CodeAITimeout             Code = "AI_TIMEOUT"
	CodeAIParseFailure        Code = "AI_PARSE_FAILURE"
	CodeInternal              Code = "INTERNAL"
)

// Error carries a stable code alongside a human message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error with the given code, message, and underlying cause.
func Wrap(code Code, message string, err error) error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation creates an invalid-recurrence-rule error.
func Validation(message string) error {
	return &Error{Code: CodeInvalidRecurrenceRule, Message: message}
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err is one of the not-found codes.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeReminderNotFound, CodeSuggestionNotFound, CodeMemberNotFound,
		CodeEventNotFound, CodeTodoNotFound:
		return true
	}
	return false
}

// IsRetryable reports whether err is a transient upstream failure that a
// higher layer may retry. Parse failures are not retryable.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeAIUnavailable, CodeAITimeout:
		return true
	}
	return false
}
