package starling

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken indicates a blank or malformed access token.
	ErrInvalidToken = errors.New("starling: access token is blank or malformed")
	// ErrUnauthorized indicates the access token is expired or lacks scope.
	ErrUnauthorized = errors.New("starling: unauthorized (access token expired or invalid)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("starling: rate limited")
	// ErrEmptyResult indicates a well-formed response with an empty list.
	ErrEmptyResult = errors.New("starling: empty result")
)

// Kind classifies a Failure.
type Kind int

const (
	// KindTransport covers network errors, timeouts, and non-2xx statuses.
	KindTransport Kind = iota
	// KindEmpty is a successful response whose payload list is empty.
	KindEmpty
	// KindValidation is a request rejected before any remote call.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindEmpty:
		return "empty"
	case KindValidation:
		return "validation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Failure is the error returned by every Client operation.
type Failure struct {
	Kind   Kind
	Op     string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("starling: %s: status %d: %v", f.Op, f.Status, f.Err)
	}
	return fmt.Sprintf("starling: %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind of err, and false if err is not a Failure.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

func transportErr(op string, status int, err error) error {
	return &Failure{Kind: KindTransport, Op: op, Status: status, Err: err}
}

func emptyErr(op, what string) error {
	return &Failure{Kind: KindEmpty, Op: op, Err: fmt.Errorf("%w: no %s found", ErrEmptyResult, what)}
}

func validationErr(op string, err error) error {
	return &Failure{Kind: KindValidation, Op: op, Err: err}
}
