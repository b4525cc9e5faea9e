package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-redeliver/internal/redelivery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Consumer.Topic)
	assert.Equal(t, ".dlt", cfg.DeadLetter.Suffix)
	assert.Equal(t, "fixed", cfg.DeadLetter.PartitionPolicy)
	assert.Equal(t, []string{"validation", "panic"}, cfg.DeadLetter.NonRetryableKinds)
	assert.Equal(t, time.Second, cfg.Backoff.InitialInterval)
	assert.Equal(t, 2.0, cfg.Backoff.Multiplier)
	assert.Equal(t, 3, cfg.Backoff.MaxRetries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("DEADLETTER_SUFFIX", "-dead")
	t.Setenv("DEADLETTER_PARTITION_POLICY", "mirror")
	t.Setenv("BACKOFF_MAX_RETRIES", "5")
	t.Setenv("BACKOFF_INITIAL_INTERVAL", "250ms")
	t.Setenv("NON_RETRYABLE_ERROR_KINDS", "validation")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "-dead", cfg.DeadLetter.Suffix)
	assert.Equal(t, "mirror", cfg.DeadLetter.PartitionPolicy)
	assert.Equal(t, 5, cfg.Backoff.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Backoff.InitialInterval)
	assert.Equal(t, []redelivery.ErrorKind{redelivery.KindValidation}, cfg.NonRetryableKinds())
}

func TestLoad_InvalidConfigurationIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{
			name:  "Unknown partition policy",
			key:   "DEADLETTER_PARTITION_POLICY",
			value: "round-robin",
		},
		{
			name:  "Negative retries",
			key:   "BACKOFF_MAX_RETRIES",
			value: "-1",
		},
		{
			name:  "Empty topic",
			key:   "KAFKA_CONSUMER_TOPIC",
			value: " ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)

			var cfgErr *redelivery.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestLoad_RetryCeilingAgainstPollInterval(t *testing.T) {
	t.Setenv("BACKOFF_INITIAL_INTERVAL", "1m")
	t.Setenv("BACKOFF_MAX_INTERVAL", "10m")
	t.Setenv("BACKOFF_MAX_RETRIES", "10")
	t.Setenv("KAFKA_MAX_POLL_INTERVAL", "5m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max poll interval")
}

func TestLoad_PolicyFileOverlay(t *testing.T) {
	policy := `
backoff:
  initialInterval: 500ms
  multiplier: 1.5
  maxRetries: 2
deadletter:
  suffix: ".failed"
  partitionPolicy: mirror
  nonRetryableErrorKinds:
    - validation
    - delivery
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o600))

	t.Setenv("REDELIVERY_POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Backoff.InitialInterval)
	assert.Equal(t, 1.5, cfg.Backoff.Multiplier)
	assert.Equal(t, 2, cfg.Backoff.MaxRetries)
	assert.Equal(t, ".failed", cfg.DeadLetter.Suffix)
	assert.Equal(t, "mirror", cfg.DeadLetter.PartitionPolicy)
	assert.Equal(t, []string{"validation", "delivery"}, cfg.DeadLetter.NonRetryableKinds)
}

func TestLoad_PolicyFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backoff: [not a mapping"), 0o600))

	t.Setenv("REDELIVERY_POLICY_FILE", path)

	_, err := Load()
	require.Error(t, err)
}

func TestBackoffScheduleConversion(t *testing.T) {
	cfg := &Config{
		Backoff: BackoffConfig{
			InitialInterval: 2 * time.Second,
			Multiplier:      3.0,
			MaxInterval:     time.Minute,
			MaxRetries:      4,
		},
	}

	schedule := cfg.BackoffSchedule()
	assert.Equal(t, 2*time.Second, schedule.InitialInterval)
	assert.Equal(t, 3.0, schedule.Multiplier)
	assert.Equal(t, time.Minute, schedule.MaxInterval)
	assert.Equal(t, 4, schedule.MaxRetries)
}
