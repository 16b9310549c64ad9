package store

import (
	"time"

	"pulseboard/internal/platform/logger"
)

// Config selects and configures the backends Open brings up
type Config struct {
	// AppName is reported to clickhouse when CH.ClientName is empty
	AppName string

	PG  PGConfig
	CH  CHConfig
	RDS RedisConfig
}

// PGConfig configures the postgres pool
type PGConfig struct {
	Enabled  bool
	URL      string
	MaxConns int32

	// LogSQL installs a pgx tracer; statements at or over SlowQueryMs log at warn
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig configures the clickhouse pool
type CHConfig struct {
	Enabled      bool
	URL          string
	MaxOpenConns int
	DialTimeout  time.Duration
	LogSQL       bool

	// reported in system.query_log
	ClientName string
	ClientTag  string
}

// RedisConfig configures the redis client
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Option mutates the Store before backends open
type Option func(*Store) error

// WithLogger sets the logger handed to backend tracers
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}
