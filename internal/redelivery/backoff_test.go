package redelivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule_NextDelay_Exponential(t *testing.T) {
	schedule := BackoffSchedule{
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     time.Minute,
		MaxRetries:      10,
	}

	delay, exhausted := schedule.NextDelay(1)
	assert.Equal(t, time.Second, delay)
	assert.False(t, exhausted)

	delay, _ = schedule.NextDelay(2)
	assert.Equal(t, 2*time.Second, delay)

	delay, _ = schedule.NextDelay(3)
	assert.Equal(t, 4*time.Second, delay)
}

func TestBackoffSchedule_NextDelay_NonDecreasingAndCapped(t *testing.T) {
	schedule := BackoffSchedule{
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      3.0,
		MaxInterval:     5 * time.Second,
		MaxRetries:      100,
	}

	var prev time.Duration
	for attempt := 1; attempt <= 50; attempt++ {
		delay, _ := schedule.NextDelay(attempt)
		assert.GreaterOrEqual(t, delay, prev, "delay must be non-decreasing at attempt %d", attempt)
		assert.LessOrEqual(t, delay, schedule.MaxInterval, "delay must be capped at attempt %d", attempt)
		prev = delay
	}

	// Far past float overflow territory the cap still holds
	delay, _ := schedule.NextDelay(10000)
	assert.Equal(t, schedule.MaxInterval, delay)
}

func TestBackoffSchedule_NextDelay_DegenerateMultipliers(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
	}{
		{name: "Constant backoff", multiplier: 1.0},
		{name: "Shrinking backoff", multiplier: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := BackoffSchedule{
				InitialInterval: time.Second,
				Multiplier:      tt.multiplier,
				MaxInterval:     time.Minute,
				MaxRetries:      5,
			}

			var prev = time.Duration(1<<63 - 1)
			for attempt := 1; attempt <= 5; attempt++ {
				delay, _ := schedule.NextDelay(attempt)
				assert.LessOrEqual(t, delay, prev)
				assert.Greater(t, delay, time.Duration(0))
				prev = delay
			}
		})
	}
}

func TestBackoffSchedule_NextDelay_Exhaustion(t *testing.T) {
	schedule := BackoffSchedule{
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     time.Minute,
		MaxRetries:      3,
	}

	_, exhausted := schedule.NextDelay(1)
	assert.False(t, exhausted)

	_, exhausted = schedule.NextDelay(2)
	assert.False(t, exhausted)

	_, exhausted = schedule.NextDelay(3)
	assert.True(t, exhausted)

	_, exhausted = schedule.NextDelay(4)
	assert.True(t, exhausted)
}

func TestBackoffSchedule_NextDelay_ZeroRetries(t *testing.T) {
	schedule := BackoffSchedule{
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     time.Minute,
		MaxRetries:      0,
	}

	// No retries: the first failure already exhausts the budget
	_, exhausted := schedule.NextDelay(1)
	assert.True(t, exhausted)
}

func TestBackoffSchedule_MaxTotalDelay(t *testing.T) {
	schedule := BackoffSchedule{
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     time.Minute,
		MaxRetries:      3,
	}

	// Two waits before the third failed attempt dead-letters: 1s + 2s
	assert.Equal(t, 3*time.Second, schedule.MaxTotalDelay())
}

func TestBackoffSchedule_Validate(t *testing.T) {
	require.NoError(t, DefaultBackoffSchedule().Validate())

	tests := []struct {
		name     string
		schedule BackoffSchedule
	}{
		{
			name:     "Zero initial interval",
			schedule: BackoffSchedule{Multiplier: 2, MaxInterval: time.Minute},
		},
		{
			name:     "Zero multiplier",
			schedule: BackoffSchedule{InitialInterval: time.Second, MaxInterval: time.Minute},
		},
		{
			name:     "Max below initial",
			schedule: BackoffSchedule{InitialInterval: time.Minute, Multiplier: 2, MaxInterval: time.Second},
		},
		{
			name:     "Negative retries",
			schedule: BackoffSchedule{InitialInterval: time.Second, Multiplier: 2, MaxInterval: time.Minute, MaxRetries: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.schedule.Validate())
		})
	}
}
