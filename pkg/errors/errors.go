package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kamranshah125/turum/internal/domain"
)

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when authentication fails
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict is returned when a write collides with an existing row
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "conflict"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// ErrInvalidStateTransition is returned when an invalid state transition is attempted
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrRemote is returned when a remote API answers with a non-success status
type ErrRemote struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *ErrRemote) Error() string {
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Service, e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying (5xx and rate limiting)
func (e *ErrRemote) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is (or wraps) an ErrNotFound
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// RemoteStatus returns the HTTP status of a wrapped ErrRemote, or 0
func RemoteStatus(err error) int {
	var re *ErrRemote
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// IsValidation reports whether err is (or wraps) an ErrValidation
func IsValidation(err error) bool {
	var ve *ErrValidation
	return errors.As(err, &ve)
}

// IsConflict reports whether err is (or wraps) an ErrConflict
func IsConflict(err error) bool {
	var ce *ErrConflict
	return errors.As(err, &ce)
}

// IsUnauthorized reports whether err is (or wraps) an ErrUnauthorized
func IsUnauthorized(err error) bool {
	var ue *ErrUnauthorized
	return errors.As(err, &ue)
}

// IsInvalidTransition reports whether err is (or wraps) an ErrInvalidStateTransition
func IsInvalidTransition(err error) bool {
	var te *ErrInvalidStateTransition
	return errors.As(err, &te)
}
