package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("invalid generation request")
	ErrSessionCreation = errors.New("session creation failed")
	ErrGeneration      = errors.New("generation failed")
	ErrHistoryLoad     = errors.New("history load failed")
	ErrAuth            = errors.New("authentication failed")
	ErrUnknownTool     = errors.New("unknown tool")
)

type ValidationError struct {
	Tool   ToolKind
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Tool, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(tool ToolKind, field, reason string) *ValidationError {
	return &ValidationError{Tool: tool, Field: field, Reason: reason}
}

type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message)
}

func (e *AuthError) Unwrap() error {
	return ErrAuth
}
