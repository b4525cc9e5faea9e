package redelivery

import (
	"errors"
	"math"
	"time"
)

// BackoffSchedule is the immutable retry configuration, loaded once at
// startup and shared across all partition workers.
type BackoffSchedule struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxRetries      int
}

func DefaultBackoffSchedule() BackoffSchedule {
	return BackoffSchedule{
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     30 * time.Second,
		MaxRetries:      3,
	}
}

func (s BackoffSchedule) Validate() error {
	if s.InitialInterval <= 0 {
		return errors.New("initialInterval must be greater than zero")
	}
	if s.Multiplier <= 0 {
		return errors.New("multiplier must be greater than zero")
	}
	if s.MaxInterval < s.InitialInterval {
		return errors.New("maxInterval cannot be less than initialInterval")
	}
	if s.MaxRetries < 0 {
		return errors.New("maxRetries cannot be negative")
	}
	return nil
}

// NextDelay computes the delay before the next attempt. attempt is the
// one-based count of failed deliveries so far, so the first retry waits
// InitialInterval. exhausted reports whether the retry budget is spent:
// MaxRetries bounds the total number of failed attempts, and MaxRetries = 0
// dead-letters on the first failure.
//
// A multiplier at or below 1 degenerates to constant or shrinking delays,
// which is valid configuration, not an error.
func (s BackoffSchedule) NextDelay(attempt int) (time.Duration, bool) {
	exhausted := attempt >= s.MaxRetries

	if attempt < 1 {
		attempt = 1
	}

	delay := float64(s.InitialInterval) * math.Pow(s.Multiplier, float64(attempt-1))
	if delay > float64(s.MaxInterval) || delay < 0 {
		return s.MaxInterval, exhausted
	}
	return time.Duration(delay), exhausted
}

// MaxTotalDelay is the worst-case time spent waiting between retries for a
// single message. The consumer's max poll interval must exceed it, or the
// consumer group will evict the worker mid-retry.
func (s BackoffSchedule) MaxTotalDelay() time.Duration {
	var total time.Duration
	for attempt := 1; attempt < s.MaxRetries; attempt++ {
		delay, _ := s.NextDelay(attempt)
		total += delay
	}
	return total
}
