package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go-redeliver/internal/redelivery"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Kafka      KafkaConfig
	Logging    LoggingConfig
	Consumer   ConsumerConfig
	Backoff    BackoffConfig
	DeadLetter DeadLetterConfig
	Redis      RedisConfig
	Metrics    MetricsConfig
}

type KafkaConfig struct {
	Brokers []string
}

type LoggingConfig struct {
	Level string
}

type ConsumerConfig struct {
	Topic           string
	GroupID         string
	Lanes           int
	FetchMinBytes   int
	FetchMaxBytes   int
	MaxPollInterval time.Duration
}

type BackoffConfig struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxRetries      int
}

type DeadLetterConfig struct {
	Suffix            string
	PartitionPolicy   string
	FixedPartition    int
	Retention         time.Duration
	NonRetryableKinds []string
}

type RedisConfig struct {
	URL string
	TTL time.Duration
}

type MetricsConfig struct {
	Addr string
}

// Load reads configuration from the environment, optionally overlaid by a
// yaml policy file, and validates it. Errors here are fatal: the process
// must not start on invalid configuration.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Kafka: KafkaConfig{
			Brokers: parseBrokers(getEnv("KAFKA_BROKERS", "localhost:9092")),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Consumer: ConsumerConfig{
			Topic:           getEnv("KAFKA_CONSUMER_TOPIC", "orders"),
			GroupID:         getEnv("KAFKA_CONSUMER_GROUP_ID", "order-redelivery-group"),
			Lanes:           getEnvInt("KAFKA_CONSUMER_LANES", 4),
			FetchMinBytes:   getEnvInt("KAFKA_CONSUMER_FETCH_MIN_BYTES", 1024),
			FetchMaxBytes:   getEnvInt("KAFKA_CONSUMER_FETCH_MAX_BYTES", 10485760),
			MaxPollInterval: getEnvDuration("KAFKA_MAX_POLL_INTERVAL", 5*time.Minute),
		},
		Backoff: BackoffConfig{
			InitialInterval: getEnvDuration("BACKOFF_INITIAL_INTERVAL", time.Second),
			Multiplier:      getEnvFloat("BACKOFF_MULTIPLIER", 2.0),
			MaxInterval:     getEnvDuration("BACKOFF_MAX_INTERVAL", 30*time.Second),
			MaxRetries:      getEnvInt("BACKOFF_MAX_RETRIES", 3),
		},
		DeadLetter: DeadLetterConfig{
			Suffix:            getEnv("DEADLETTER_SUFFIX", redelivery.DefaultDeadLetterSuffix),
			PartitionPolicy:   getEnv("DEADLETTER_PARTITION_POLICY", "fixed"),
			FixedPartition:    getEnvInt("DEADLETTER_FIXED_PARTITION", 0),
			Retention:         getEnvDuration("DEADLETTER_RETENTION", 14*24*time.Hour),
			NonRetryableKinds: parseList(getEnv("NON_RETRYABLE_ERROR_KINDS", "validation,panic")),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
			TTL: getEnvDuration("REDIS_STATE_TTL", time.Hour),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}

	if path := getEnv("REDELIVERY_POLICY_FILE", ""); path != "" {
		if err := cfg.applyPolicyFile(path); err != nil {
			return nil, &redelivery.ConfigurationError{Err: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &redelivery.ConfigurationError{Err: err}
	}

	return cfg, nil
}

// policyFile is the yaml shape of the optional redelivery policy overlay.
// Durations are strings in time.ParseDuration format.
type policyFile struct {
	Backoff struct {
		InitialInterval string  `yaml:"initialInterval"`
		Multiplier      float64 `yaml:"multiplier"`
		MaxInterval     string  `yaml:"maxInterval"`
		MaxRetries      *int    `yaml:"maxRetries"`
	} `yaml:"backoff"`
	DeadLetter struct {
		Suffix            string   `yaml:"suffix"`
		PartitionPolicy   string   `yaml:"partitionPolicy"`
		FixedPartition    *int     `yaml:"fixedPartition"`
		Retention         string   `yaml:"retention"`
		NonRetryableKinds []string `yaml:"nonRetryableErrorKinds"`
	} `yaml:"deadletter"`
}

func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy policyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("failed to parse policy file: %w", err)
	}

	if policy.Backoff.InitialInterval != "" {
		if c.Backoff.InitialInterval, err = time.ParseDuration(policy.Backoff.InitialInterval); err != nil {
			return fmt.Errorf("invalid backoff.initialInterval: %w", err)
		}
	}
	if policy.Backoff.Multiplier != 0 {
		c.Backoff.Multiplier = policy.Backoff.Multiplier
	}
	if policy.Backoff.MaxInterval != "" {
		if c.Backoff.MaxInterval, err = time.ParseDuration(policy.Backoff.MaxInterval); err != nil {
			return fmt.Errorf("invalid backoff.maxInterval: %w", err)
		}
	}
	if policy.Backoff.MaxRetries != nil {
		c.Backoff.MaxRetries = *policy.Backoff.MaxRetries
	}

	if policy.DeadLetter.Suffix != "" {
		c.DeadLetter.Suffix = policy.DeadLetter.Suffix
	}
	if policy.DeadLetter.PartitionPolicy != "" {
		c.DeadLetter.PartitionPolicy = policy.DeadLetter.PartitionPolicy
	}
	if policy.DeadLetter.FixedPartition != nil {
		c.DeadLetter.FixedPartition = *policy.DeadLetter.FixedPartition
	}
	if policy.DeadLetter.Retention != "" {
		if c.DeadLetter.Retention, err = time.ParseDuration(policy.DeadLetter.Retention); err != nil {
			return fmt.Errorf("invalid deadletter.retention: %w", err)
		}
	}
	if len(policy.DeadLetter.NonRetryableKinds) > 0 {
		c.DeadLetter.NonRetryableKinds = policy.DeadLetter.NonRetryableKinds
	}

	return nil
}

func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if strings.TrimSpace(c.Consumer.Topic) == "" {
		return fmt.Errorf("consumer topic cannot be empty")
	}
	if strings.TrimSpace(c.Consumer.GroupID) == "" {
		return fmt.Errorf("consumer groupID cannot be empty")
	}
	if c.Consumer.Lanes <= 0 {
		return fmt.Errorf("consumer lanes must be greater than zero")
	}
	if c.DeadLetter.Suffix == "" {
		return fmt.Errorf("deadletter suffix cannot be empty")
	}
	if c.DeadLetter.FixedPartition < 0 {
		return fmt.Errorf("deadletter fixed partition cannot be negative")
	}
	if _, err := redelivery.ParsePartitionPolicy(c.DeadLetter.PartitionPolicy); err != nil {
		return err
	}

	schedule := c.BackoffSchedule()
	if err := schedule.Validate(); err != nil {
		return err
	}

	// Blocking retries hold the poll slot: the worst-case retry time for one
	// message must stay below the consumer group's poll ceiling or the
	// consumer is evicted mid-retry.
	if total := schedule.MaxTotalDelay(); total >= c.Consumer.MaxPollInterval {
		return fmt.Errorf("worst-case retry time %s exceeds max poll interval %s", total, c.Consumer.MaxPollInterval)
	}

	return nil
}

// BackoffSchedule converts the backoff section to the immutable schedule
// shared by the coordinator.
func (c *Config) BackoffSchedule() redelivery.BackoffSchedule {
	return redelivery.BackoffSchedule{
		InitialInterval: c.Backoff.InitialInterval,
		Multiplier:      c.Backoff.Multiplier,
		MaxInterval:     c.Backoff.MaxInterval,
		MaxRetries:      c.Backoff.MaxRetries,
	}
}

// NonRetryableKinds converts the configured kind names to classifier rules.
func (c *Config) NonRetryableKinds() []redelivery.ErrorKind {
	kinds := make([]redelivery.ErrorKind, 0, len(c.DeadLetter.NonRetryableKinds))
	for _, k := range c.DeadLetter.NonRetryableKinds {
		kinds = append(kinds, redelivery.ErrorKind(k))
	}
	return kinds
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseBrokers(brokers string) []string {
	return parseList(brokers)
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
