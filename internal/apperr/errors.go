// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apperr defines the error taxonomy surfaced at the command boundary.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNoMatch          = errors.New("no item matches the query")
	ErrSelectionAborted = errors.New("selection aborted")
	ErrConflict         = errors.New("version conflict")
	ErrNetwork          = errors.New("network failure")
	ErrAuth             = errors.New("authentication failed")
	ErrConversion       = errors.New("conversion failed")
	ErrEditorFailed     = errors.New("editor exited with an error")
	ErrNotFound         = errors.New("not found")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrNoNotes          = errors.New("item has no notes")
)

// ConflictError reports a rejected conditional write: the remote copy moved
// past the version the write was based on.
type ConflictError struct {
	Key      string
	Expected int64

	// Current is the remote version when known, zero otherwise.
	Current int64
}

func (e *ConflictError) Error() string {
	if e.Current > 0 {
		return fmt.Sprintf("version conflict on %s: expected %d, remote is at %d", e.Key, e.Expected, e.Current)
	}
	return fmt.Sprintf("version conflict on %s: remote changed since version %d", e.Key, e.Expected)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// networkError wraps a transport failure so it matches ErrNetwork while
// keeping the cause inspectable.
type networkError struct {
	err error
}

func (e *networkError) Error() string { return "network failure: " + e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }
func (e *networkError) Is(target error) bool {
	return target == ErrNetwork
}

// NetworkFailure marks err as a network failure. A nil err stays nil.
func NetworkFailure(err error) error {
	if err == nil {
		return nil
	}
	return &networkError{err: err}
}

// Exit codes for the CLI. Each user-facing failure class has its own code.
const (
	ExitOK         = 0
	ExitGeneric    = 1
	ExitNoMatch    = 2
	ExitAborted    = 3
	ExitConflict   = 4
	ExitNetwork    = 5
	ExitAuth       = 6
	ExitConversion = 7
	ExitEditor     = 8
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrNoMatch):
		return ExitNoMatch
	case errors.Is(err, ErrSelectionAborted):
		return ExitAborted
	case errors.Is(err, ErrConflict):
		return ExitConflict
	case errors.Is(err, ErrAuth):
		return ExitAuth
	case errors.Is(err, ErrNetwork):
		return ExitNetwork
	case errors.Is(err, ErrConversion):
		return ExitConversion
	case errors.Is(err, ErrEditorFailed):
		return ExitEditor
	default:
		return ExitGeneric
	}
}

// Message returns a user-readable line for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoMatch):
		return "Could not find any items for the query."
	case errors.Is(err, ErrSelectionAborted):
		return "No item selected."
	case errors.Is(err, ErrConflict):
		return "The note was changed remotely since it was fetched: " + err.Error()
	case errors.Is(err, ErrAuth):
		return "The remote library rejected the credentials. Check zotero.api_key and zotero.library_id (run `zotnote configure`)."
	case errors.Is(err, ErrNetwork):
		return "Could not reach the remote library: " + err.Error()
	case errors.Is(err, ErrConversion):
		return "Note conversion failed: " + err.Error()
	case errors.Is(err, ErrEditorFailed):
		return err.Error()
	default:
		return err.Error()
	}
}
