package provider

import (
	"context"
	"errors"
	"fmt"
)

// SendRequest is one outbound message for the external provider.
type SendRequest struct {
	Phone         string
	Content       string
	CompanyID     int
	IntegrationID int
}

// SendResponse carries what the provider told us about an accepted message.
type SendResponse struct {
	MessageID   string
	RawResponse string
}

// Sender is the external messaging provider. Implementations must bound the
// call with their own timeout; the worker does not cancel in-flight sends.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (*SendResponse, error)
}

// TransientError is a failure worth retrying: timeout, rate limit, provider
// outage.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient provider error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transient provider error: %s", e.Reason)
}

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransient(reason string, err error) error {
	return &TransientError{Reason: reason, Err: err}
}

// PermanentError is a failure that will never succeed on retry: invalid
// destination, content rejected.
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("permanent provider error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("permanent provider error: %s", e.Reason)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanent(reason string, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

// IsTransient reports whether err should be retried. Errors that are neither
// transient nor permanent (unexpected plumbing failures) are treated as
// transient so a flaky classification never burns a recipient permanently.
func IsTransient(err error) bool {
	var p *PermanentError
	return !errors.As(err, &p)
}

// IsPermanent reports whether err must not be retried.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
