package redelivery

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "Transient",
			err:      &TransientError{Err: errors.New("downstream unavailable")},
			expected: KindTransient,
		},
		{
			name:     "Validation",
			err:      &ValidationError{Err: errors.New("bad amount")},
			expected: KindValidation,
		},
		{
			name:     "Delivery",
			err:      &DeliveryError{Err: errors.New("broker gone")},
			expected: KindDelivery,
		},
		{
			name:     "Configuration",
			err:      &ConfigurationError{Err: errors.New("bad suffix")},
			expected: KindConfiguration,
		},
		{
			name:     "Panic",
			err:      &PanicError{Value: "boom"},
			expected: KindPanic,
		},
		{
			name:     "Plain error",
			err:      errors.New("anything"),
			expected: KindUnclassified,
		},
		{
			name:     "Wrapped validation",
			err:      fmt.Errorf("handler: %w", &ValidationError{Err: errors.New("bad")}),
			expected: KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestClassifier_Defaults(t *testing.T) {
	classifier := NewClassifier(nil)

	assert.Equal(t, Terminal, classifier.Classify(&ValidationError{Err: errors.New("bad")}))
	assert.Equal(t, Terminal, classifier.Classify(&PanicError{Value: "boom"}))
	assert.Equal(t, Retryable, classifier.Classify(&TransientError{Err: errors.New("flaky")}))
	assert.Equal(t, Retryable, classifier.Classify(errors.New("unknown kind")))
}

func TestClassifier_ExplicitRuleSet(t *testing.T) {
	// An explicit rule set replaces the defaults entirely
	classifier := NewClassifier([]ErrorKind{KindTransient})

	assert.Equal(t, Terminal, classifier.Classify(&TransientError{Err: errors.New("flaky")}))
	assert.Equal(t, Retryable, classifier.Classify(&ValidationError{Err: errors.New("bad")}))
}

func TestErrorWrappers_Unwrap(t *testing.T) {
	inner := errors.New("root cause")

	assert.ErrorIs(t, &TransientError{Err: inner}, inner)
	assert.ErrorIs(t, &ValidationError{Err: inner}, inner)
	assert.ErrorIs(t, &DeliveryError{Err: inner}, inner)
	assert.ErrorIs(t, &ConfigurationError{Err: inner}, inner)

	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", &TransientError{Err: inner})))
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", &ValidationError{Err: inner})))
	assert.True(t, IsDelivery(fmt.Errorf("wrapped: %w", &DeliveryError{Err: inner})))
	assert.False(t, IsValidation(inner))
}
