package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates a configuration file was not found
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrValidationFailed indicates configuration validation failed
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrAgentNotFound indicates an agent id is not present in the registry
	ErrAgentNotFound = errors.New("agent not found")

	// ErrProviderNotFound indicates an LLM provider id is not configured
	ErrProviderNotFound = errors.New("llm provider not found")

	// ErrMissingRequiredField indicates a required field is missing
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field has an invalid value
	ErrInvalidValue = errors.New("invalid field value")
)

// ValidationError wraps a configuration validation failure with context.
type ValidationError struct {
	Component string // component being validated (settings, agent, llm_provider)
	ID        string // id of the component, if any
	Field     string // field name, optional
	Err       error
}

func (e *ValidationError) Error() string {
	switch {
	case e.ID != "" && e.Field != "":
		return fmt.Sprintf("%s '%s': field '%s': %v", e.Component, e.ID, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: field '%s': %v", e.Component, e.Field, e.Err)
	case e.ID != "":
		return fmt.Sprintf("%s '%s': %v", e.Component, e.ID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error for one component field.
func NewValidationError(component, id, field string, err error) *ValidationError {
	return &ValidationError{Component: component, ID: id, Field: field, Err: err}
}

// LoadError wraps a configuration loading failure with file context.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a load error for one file.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
