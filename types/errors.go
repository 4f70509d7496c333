package types

import (
	"errors"
	"fmt"
)

var (
	ErrRecordFrozen     = errors.New("record is done; field is frozen")
	ErrRequestNotFound  = errors.New("request not found")
	ErrPartialNotFound  = errors.New("partial delivery not found")
	ErrUnknownLocation  = errors.New("location not in catalog")
	ErrArchiveDisabled  = errors.New("remote archive not configured")
	ErrScenarioNotFound = errors.New("scenario not found")
)

// ImportError reports a catalog source that could not be read or parsed. The
// previous catalog stays in place.
type ImportError struct {
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("catalog import from %q failed: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// DriftError reports a stored reference that is absent from the current
// catalog. Stored text is kept; the operator is only warned.
type DriftError struct {
	Kind     string // location, category or source
	Name     string
	Fallback string
}

func (e *DriftError) Error() string {
	if e.Fallback != "" {
		return fmt.Sprintf("%s %q not found in catalog, using %q", e.Kind, e.Name, e.Fallback)
	}
	return fmt.Sprintf("%s %q not found in catalog", e.Kind, e.Name)
}

// PersistenceError wraps a local or remote write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationWarning reports input that was coerced instead of rejected.
type ValidationWarning struct {
	Field  string
	Input  string
	Reason string
}

func (e *ValidationWarning) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "non-numeric input coerced"
	}
	return fmt.Sprintf("%s: %s (%q)", e.Field, reason, e.Input)
}
