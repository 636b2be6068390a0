package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies inventory resolution failures.
type ErrorKind string

const (
	// ErrorKindCycle indicates the group children relation contains a cycle.
	// Fatal to the whole resolution pass.
	ErrorKindCycle ErrorKind = "cycle"

	// ErrorKindSource indicates an inventory source could not be loaded or
	// parsed. Fatal to that source; other sources may still be usable.
	ErrorKindSource ErrorKind = "source"

	// ErrorKindHostNotFound indicates a host name unknown to the inventory.
	ErrorKindHostNotFound ErrorKind = "host_not_found"
)

// InventoryError is a classified inventory error carrying the offending
// group, host, or source name for diagnostics.
// nolint:revive // InventoryError is intentionally named to distinguish from standard errors
type InventoryError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Cycle is the group cycle path for cycle errors, in traversal order
	// with the repeated group closing the loop.
	Cycle []string `json:"cycle,omitempty"`

	// Source is the offending source name, if applicable.
	Source string `json:"source,omitempty"`

	// Host is the offending host name, if applicable.
	Host string `json:"host,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, formatCycle(e.Cycle))
	case e.Source != "":
		return fmt.Sprintf("[%s] %s (source=%s): %s", e.Kind, e.Message, e.Source, e.unwrapMessage())
	case e.Host != "":
		return fmt.Sprintf("[%s] %s (host=%s)", e.Kind, e.Message, e.Host)
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.unwrapMessage())
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *InventoryError) Unwrap() error {
	return e.Err
}

func (e *InventoryError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *InventoryError) Is(target error) bool {
	t, ok := target.(*InventoryError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewCycleError creates a cycle error naming the offending cycle path.
func NewCycleError(cycle []string) *InventoryError {
	return &InventoryError{
		Kind:    ErrorKindCycle,
		Message: "group children relation contains a cycle",
		Cycle:   cycle,
	}
}

// NewSourceError creates a source error for the named source.
func NewSourceError(source, message string, err error) *InventoryError {
	return &InventoryError{
		Kind:    ErrorKindSource,
		Message: message,
		Source:  source,
		Err:     err,
	}
}

// NewHostNotFoundError creates an unknown-host error.
func NewHostNotFoundError(host string) *InventoryError {
	return &InventoryError{
		Kind:    ErrorKindHostNotFound,
		Message: "host is not present in the inventory",
		Host:    host,
	}
}

// IsCycle returns true if the error is classified as a cycle error.
func IsCycle(err error) bool {
	var e *InventoryError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindCycle
	}
	return false
}

// IsSource returns true if the error is classified as a source error.
func IsSource(err error) bool {
	var e *InventoryError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindSource
	}
	return false
}

// IsHostNotFound returns true if the error reports an unknown host.
func IsHostNotFound(err error) bool {
	var e *InventoryError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindHostNotFound
	}
	return false
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
