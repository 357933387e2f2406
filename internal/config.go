package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	BackendBadger = "badger"
	BackendAWS    = "aws"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	Host            string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port            int           `env:"PORT,default=3000" validate:"min=1,max=65535"`
	HealthPort      int           `env:"HEALTH_PORT,default=3001" validate:"min=1,max=65535,nefield=Port"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081" validate:"min=1,max=65535"`
	CORSOrigin      string        `env:"CORS_ORIGIN,default=*" validate:"required"`
	Backend         string        `env:"BACKEND,default=badger" validate:"oneof=badger aws"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/badger" validate:"required_if=Backend badger"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`

	AWSRegion             string `env:"AWS_REGION,default=us-east-1"`
	AWSEndpointURL        string `env:"AWS_ENDPOINT_URL"`
	UsersTable            string `env:"USERS_TABLE,default=UserStatusChat_Users" validate:"required_if=Backend aws"`
	ConnectionsTable      string `env:"CONNECTIONS_TABLE,default=UserStatusChat_Users_Connections" validate:"required_if=Backend aws"`
	MessagesTable         string `env:"MESSAGES_TABLE,default=UserStatusChat_Users_Messages" validate:"required_if=Backend aws"`
	ArchivesTable         string `env:"ARCHIVES_TABLE,default=UserStatusChat_Archives" validate:"required_if=Backend aws"`
	S3BucketName          string `env:"S3_BUCKET_NAME" validate:"required_if=Backend aws"`
	SQSQueueURL           string `env:"SQS_QUEUE_URL"`
	SQSDeadLetterQueueURL string `env:"SQS_DEAD_LETTER_QUEUE_URL"`

	QueueBatchSize         int           `env:"QUEUE_BATCH_SIZE,default=10" validate:"min=1,max=10"`
	QueueWaitTime          time.Duration `env:"QUEUE_WAIT_TIME,default=20s" validate:"gte=0"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s" validate:"gt=0"`
	QueuePollBackoff       time.Duration `env:"QUEUE_POLL_BACKOFF,default=5s" validate:"gt=0"`
	QueueSystemDelay       time.Duration `env:"QUEUE_SYSTEM_DELAY,default=1s" validate:"gte=0"`
	QueueMaxReceiveCount   int           `env:"QUEUE_MAX_RECEIVE_COUNT,default=5" validate:"gte=0"`

	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,default=60s" validate:"gt=0"`
	InactivityThreshold  time.Duration `env:"INACTIVITY_THRESHOLD,default=5m" validate:"gt=0"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s" validate:"gt=0"`
	CleanupInterval      time.Duration `env:"CLEANUP_INTERVAL,default=1h" validate:"gt=0"`
	StaleConnectionAge   time.Duration `env:"STALE_CONNECTION_AGE,default=24h" validate:"gt=0"`
	RingCapacity         int           `env:"RING_CAPACITY,default=100" validate:"min=1"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50" validate:"min=1"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=128" validate:"min=1"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

var validate = validator.New()

// Validate normalizes the log level then checks every constraint.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
