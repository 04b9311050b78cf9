// Package cadenceerr defines the typed error kinds every RPC handler and
// job reports through. Nothing unwinds across the RPC boundary as a Go
// panic except a recovered-and-logged one; every failure instead takes
// this shape so internal/rpcapi can map it to a stable, serializable
// response.
package cadenceerr

import (
	"errors"
	"fmt"
)

// Kind is the stable, serializable error category. The string form is
// part of the RPC contract: clients match on it.
type Kind string

const (
	KindNotFound        Kind = "NotFound"
	KindAlreadyExists   Kind = "AlreadyExists"
	KindInvalidArgument Kind = "InvalidArgument"
	KindAlreadyInProgress Kind = "AlreadyInProgress"
	KindFeatureDisabled Kind = "FeatureDisabled"
	KindStorageError    Kind = "StorageError"
	KindAnalysisError   Kind = "AnalysisError"
	KindClusteringError Kind = "ClusteringError"
	KindMigrationError  Kind = "MigrationError"
	KindInternal        Kind = "Internal"
)

// Error is the single error type every component returns; Kind drives
// client-visible behavior, Diagnostic is a free-form human string never
// parsed by callers.
type Error struct {
	Kind       Kind
	Diagnostic string
	JobKind    string // only set for KindAlreadyInProgress
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindAlreadyInProgress {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.JobKind, e.Diagnostic)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Diagnostic)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(diagnostic string) *Error {
	return &Error{Kind: KindNotFound, Diagnostic: diagnostic}
}

func AlreadyExists(diagnostic string) *Error {
	return &Error{Kind: KindAlreadyExists, Diagnostic: diagnostic}
}

func InvalidArgument(diagnostic string) *Error {
	return &Error{Kind: KindInvalidArgument, Diagnostic: diagnostic}
}

// AlreadyInProgress reports that the named maintenance job (rescan,
// analyze, or recluster) is already running and could not acquire its
// try_lock.
func AlreadyInProgress(jobKind string) *Error {
	return &Error{Kind: KindAlreadyInProgress, JobKind: jobKind, Diagnostic: jobKind + " is already in progress"}
}

func FeatureDisabled(diagnostic string) *Error {
	return &Error{Kind: KindFeatureDisabled, Diagnostic: diagnostic}
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorageError, Diagnostic: err.Error(), Err: err}
}

func Analysis(err error) *Error {
	return &Error{Kind: KindAnalysisError, Diagnostic: err.Error(), Err: err}
}

func Clustering(err error) *Error {
	return &Error{Kind: KindClusteringError, Diagnostic: err.Error(), Err: err}
}

func Migration(err error) *Error {
	return &Error{Kind: KindMigrationError, Diagnostic: err.Error(), Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Diagnostic: err.Error(), Err: err}
}

// As is a convenience wrapper over errors.As for callers that just want
// the Kind out of an arbitrary error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
