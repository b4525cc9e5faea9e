package redelivery

import (
	"errors"
	"fmt"
)

// ErrorKind identifies a family of failures for classification purposes.
type ErrorKind string

const (
	KindTransient     ErrorKind = "transient"
	KindValidation    ErrorKind = "validation"
	KindDelivery      ErrorKind = "delivery"
	KindConfiguration ErrorKind = "configuration"
	KindPanic         ErrorKind = "panic"
	KindUnclassified  ErrorKind = "unclassified"
)

// TransientError marks a failure that is expected to succeed on a later
// attempt, e.g. a downstream dependency being unavailable.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ValidationError marks a failure that no amount of retrying can fix, e.g.
// a malformed or semantically invalid payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError marks a failed publish to a destination topic. It belongs to
// the delivery layer and is retried on its own budget, never counted against
// the original message's retry budget.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ConfigurationError marks an invalid startup configuration. The process
// must not start when one is reported.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered handler panic so it can be classified like
// any other failure.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", e.Value)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsDelivery(err error) bool {
	var d *DeliveryError
	return errors.As(err, &d)
}

// KindOf reports the kind of the first typed error in err's chain.
// Untyped errors are unclassified and treated as retryable.
func KindOf(err error) ErrorKind {
	var (
		transient  *TransientError
		validation *ValidationError
		delivery   *DeliveryError
		config     *ConfigurationError
		panicked   *PanicError
	)

	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &delivery):
		return KindDelivery
	case errors.As(err, &config):
		return KindConfiguration
	case errors.As(err, &panicked):
		return KindPanic
	case errors.As(err, &transient):
		return KindTransient
	default:
		return KindUnclassified
	}
}

// Classification is the classifier's verdict on a handler failure.
type Classification int

const (
	Retryable Classification = iota
	Terminal
)

func (c Classification) String() string {
	if c == Terminal {
		return "terminal"
	}
	return "retryable"
}

// Classifier decides whether a failure is worth retrying. It is consulted
// before the backoff policy: a Terminal verdict short-circuits the remaining
// retry budget.
type Classifier struct {
	nonRetryable map[ErrorKind]struct{}
}

// DefaultNonRetryableKinds returns the kinds that are terminal when no
// explicit rule set is configured.
func DefaultNonRetryableKinds() []ErrorKind {
	return []ErrorKind{KindValidation, KindPanic}
}

// NewClassifier builds a classifier from a set of non-retryable error kinds.
// A nil or empty set falls back to DefaultNonRetryableKinds. All other kinds
// default to Retryable.
func NewClassifier(kinds []ErrorKind) *Classifier {
	if len(kinds) == 0 {
		kinds = DefaultNonRetryableKinds()
	}

	nonRetryable := make(map[ErrorKind]struct{}, len(kinds))
	for _, k := range kinds {
		nonRetryable[k] = struct{}{}
	}

	return &Classifier{nonRetryable: nonRetryable}
}

func (c *Classifier) Classify(err error) Classification {
	if _, ok := c.nonRetryable[KindOf(err)]; ok {
		return Terminal
	}
	return Retryable
}
