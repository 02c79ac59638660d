package notify

import (
	"context"
	"fmt"
)

// Notifier delivers one rendered message to one recipient.
type Notifier interface {
	// Deliver sends the message. A nil return means the transport accepted
	// it; any error is recorded by the caller as a failed delivery.
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// DeliveryError wraps a transport failure with the recipient it concerned.
type DeliveryError struct {
	Recipient string
	Cause     error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error [recipient=%s]: %v", e.Recipient, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// NewDeliveryError creates a new DeliveryError.
func NewDeliveryError(recipient string, cause error) *DeliveryError {
	return &DeliveryError{Recipient: recipient, Cause: cause}
}
