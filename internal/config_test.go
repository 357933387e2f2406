package internal

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.NoError(cfg.Validate())

	req.Equal(BackendBadger, cfg.Backend)
	req.Equal(3000, cfg.Port)
	req.Equal(10, cfg.QueueBatchSize)
	req.Equal(20*time.Second, cfg.QueueWaitTime)
	req.Equal(30*time.Second, cfg.QueueVisibilityTimeout)
	req.Equal(5*time.Second, cfg.QueuePollBackoff)
	req.Equal(time.Second, cfg.QueueSystemDelay)
	req.Equal(60*time.Second, cfg.SweepInterval)
	req.Equal(5*time.Minute, cfg.InactivityThreshold)
	req.Equal(100, cfg.RingCapacity)
}

func TestConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("RING_CAPACITY", "10")

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.NoError(cfg.Validate())

	req.Equal("DEBUG", cfg.LogLevel)
	req.Equal(5*time.Second, cfg.SweepInterval)
	req.Equal(10, cfg.RingCapacity)
}

func TestConfig_AWSBackendRequiresBucket(t *testing.T) {
	req := require.New(t)
	t.Setenv("BACKEND", "aws")

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.ErrorContains(cfg.Validate(), "S3BucketName")
}

func TestConfig_RejectsSamePorts(t *testing.T) {
	req := require.New(t)
	t.Setenv("PORT", "4000")
	t.Setenv("HEALTH_PORT", "4000")

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	req.NoError(err)
	req.Error(cfg.Validate())
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)

	r, err := CharacterRune("#")
	req.NoError(err)
	req.Equal('#', r)

	_, err = CharacterRune("**")
	req.Error(err)
}
