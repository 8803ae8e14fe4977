package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat          string        `mapstructure:"log_format" yaml:"log_format" validate:"omitempty,oneof=console json"`
	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"gte=0"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute" validate:"gte=0"`
	ClientBuffer       int           `mapstructure:"client_buffer" yaml:"client_buffer" validate:"gte=0"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
}

// StorageConfig selects the message log backend.
// Users and issues always live in the SQLite database.
type StorageConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite badger mongo postgres memory"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path" validate:"required"`
	BadgerPath    string `mapstructure:"badger_path" yaml:"badger_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri" validate:"required_if=Driver mongo"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database" validate:"required_if=Driver mongo"`
	PostgresDSN   string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// NotifyConfig configures absentee email notifications.
// An empty SMTPHost logs notices instead of sending them.
type NotifyConfig struct {
	SMTPHost     string        `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port" yaml:"smtp_port" validate:"gte=0,lte=65535"`
	SMTPUsername string        `mapstructure:"smtp_username" yaml:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password" yaml:"smtp_password"`
	From         string        `mapstructure:"from" yaml:"from" validate:"omitempty,email"`
	FrontendURL  string        `mapstructure:"frontend_url" yaml:"frontend_url" validate:"omitempty,url"`
	Workers      int           `mapstructure:"workers" yaml:"workers" validate:"min=1"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size" validate:"min=1"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 120,
		ClientBuffer:       64,
		Storage: StorageConfig{
			Driver:        "sqlite",
			SQLitePath:    "issuechat.db",
			BadgerPath:    "data/messages",
			MongoDatabase: "issuechat",
		},
		Notify: NotifyConfig{
			SMTPPort:    587,
			From:        "noreply@example.com",
			FrontendURL: "http://localhost:3000",
			Workers:     4,
			QueueSize:   256,
			Timeout:     10 * time.Second,
		},
	}
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
