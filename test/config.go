package test

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the knobs of the integration scenarios. Defaults suit
// local runs; CI can stretch the timeout on slow machines.
type Config struct {
	WaitTimeout     time.Duration `envconfig:"TEST_WAIT_TIMEOUT" default:"2s"`
	DuplicateWindow time.Duration `envconfig:"TEST_DUPLICATE_WINDOW" default:"2s"`
	BufferSize      int           `envconfig:"TEST_BUFFER_SIZE" default:"32"`
	RestartInterval time.Duration `envconfig:"TEST_RESTART_INTERVAL" default:"100ms"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
