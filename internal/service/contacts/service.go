package contacts

import (
	"context"
	"errors"
	"fmt"
)

// Service errors
var (
	ErrUpstreamStatus = errors.New("contact lookup returned unexpected status")
	ErrNotJSON        = errors.New("contact lookup returned a non-JSON body")
	ErrDecode         = errors.New("contact lookup returned malformed JSON")
	ErrTransport      = errors.New("contact lookup transport failure")
)

// UpstreamErrorKind classifies contact lookup failures.
type UpstreamErrorKind string

const (
	UpstreamErrorKindStatus    UpstreamErrorKind = "status"
	UpstreamErrorKindNotJSON   UpstreamErrorKind = "not_json"
	UpstreamErrorKindDecode    UpstreamErrorKind = "decode"
	UpstreamErrorKindTransport UpstreamErrorKind = "transport"
)

// UpstreamError carries what is known about a failed upstream call. Status is
// zero when no response was received.
type UpstreamError struct {
	Kind   UpstreamErrorKind
	Status int
	cause  error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "contact lookup error"
	}
	if e.cause == nil {
		return fmt.Sprintf("contact lookup error (kind=%s status=%d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("contact lookup error (kind=%s status=%d): %v", e.Kind, e.Status, e.cause)
}

// Unwrap enables errors.Is/As against the sentinel errors and the transport cause.
func (e *UpstreamError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := []error{kindSentinel(e.Kind)}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func kindSentinel(kind UpstreamErrorKind) error {
	switch kind {
	case UpstreamErrorKindStatus:
		return ErrUpstreamStatus
	case UpstreamErrorKindNotJSON:
		return ErrNotJSON
	case UpstreamErrorKindDecode:
		return ErrDecode
	default:
		return ErrTransport
	}
}

// Contact is the part of an upstream contact record this service consumes.
type Contact struct {
	Phone string
	// ProfileImage is the profile.image URL, empty when absent or not a string.
	ProfileImage string
}

// Service looks up contacts by normalized (digits only) phone number.
type Service interface {
	GetContact(ctx context.Context, phone string) (*Contact, error)
}
