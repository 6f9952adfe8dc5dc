package utils

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Kind classifies an error by the layer it came from
type Kind string

const (
	KindNetwork    Kind = "network"
	KindIO         Kind = "io"
	KindJSON       Kind = "json"
	KindConversion Kind = "conversion"
	KindNotFound   Kind = "not found"
	KindArchive    Kind = "archive"
	KindDatabase   Kind = "database"
	KindStatus     Kind = "status"
)

// Error is a classified error with the context it was raised in
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s error: %v (%s)", e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// NetworkError wraps a transport failure
func NetworkError(context string, err error) *Error { return newError(KindNetwork, context, err) }

// IoError wraps a filesystem failure
func IoError(context string, err error) *Error { return newError(KindIO, context, err) }

// JsonError wraps a malformed or unexpected response body
func JsonError(context string, err error) *Error { return newError(KindJSON, context, err) }

// ConversionError wraps a numeric or string parse failure
func ConversionError(context string, err error) *Error {
	return newError(KindConversion, context, err)
}

// NotFoundError reports an expected field or resource that is absent
func NotFoundError(context, what string) *Error {
	return newError(KindNotFound, context, fmt.Errorf("didn't find %s", what))
}

// ArchiveError wraps a container write failure
func ArchiveError(context string, err error) *Error { return newError(KindArchive, context, err) }

// DatabaseError wraps a ledger or store failure
func DatabaseError(context string, err error) *Error { return newError(KindDatabase, context, err) }

// StatusError is returned when the remote answers with a non-success status
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status error: %d (%s)", e.Code, e.URL)
}

// IsKind reports whether any error in err's chain has the given kind
func IsKind(err error, kind Kind) bool {
	if kind == KindStatus {
		var se *StatusError
		return errors.As(err, &se)
	}
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// SuspendedError is an error deferred until the end of the run
type SuspendedError struct {
	Context string
	Err     error
}

// SuspendedErrors collects non-fatal errors so sibling work can continue
type SuspendedErrors struct {
	mu   sync.Mutex
	errs []SuspendedError
}

// Suspend records err under the given context tag
func (s *SuspendedErrors) Suspend(context string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, SuspendedError{Context: context, Err: err})
}

// All returns a copy of the collected errors
func (s *SuspendedErrors) All() []SuspendedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SuspendedError, len(s.errs))
	copy(out, s.errs)
	return out
}

// Len returns the number of collected errors
func (s *SuspendedErrors) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// Print writes every suspended error to w
func (s *SuspendedErrors) Print(w io.Writer) {
	for _, e := range s.All() {
		fmt.Fprintf(w, "[%s] %v\n", e.Context, e.Err)
	}
}
