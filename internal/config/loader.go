package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "ISSUECHAT"
	envConfigDefaultPath = "ISSUECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load resolves the config file path and merges defaults, the yaml file and
// ISSUECHAT_* env vars, in that order of precedence. A missing file is created
// from the defaults. The returned path is the file that was used.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg := Default()
	path := resolveConfigPath(explicitPath)

	v := viper.New()
	setDefaults(v, cfg)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	if err := readOrCreate(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, path, nil
}

// readOrCreate reads the config file, writing the defaults first when it does not exist.
// Failing to write the default file is not fatal: defaults and env vars still apply.
func readOrCreate(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := writeDefaultConfig(path, cfg); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("default config not written")
		return nil
	}
	logger.Info().Str("path", path).Msg("wrote default config")

	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("default config unreadable")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override nested values.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("rate_limit_per_minute", cfg.RateLimitPerMinute)
	v.SetDefault("client_buffer", cfg.ClientBuffer)

	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.badger_path", cfg.Storage.BadgerPath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)

	v.SetDefault("notify.smtp_host", cfg.Notify.SMTPHost)
	v.SetDefault("notify.smtp_port", cfg.Notify.SMTPPort)
	v.SetDefault("notify.smtp_username", cfg.Notify.SMTPUsername)
	v.SetDefault("notify.smtp_password", cfg.Notify.SMTPPassword)
	v.SetDefault("notify.from", cfg.Notify.From)
	v.SetDefault("notify.frontend_url", cfg.Notify.FrontendURL)
	v.SetDefault("notify.workers", cfg.Notify.Workers)
	v.SetDefault("notify.queue_size", cfg.Notify.QueueSize)
	v.SetDefault("notify.timeout", cfg.Notify.Timeout)
}

// resolveConfigPath prefers the explicit path, then ISSUECHAT_CONFIG_DEFAULT_PATH,
// then config.yaml in the working directory.
func resolveConfigPath(explicitPath string) string {
	switch {
	case explicitPath != "":
		return explicitPath
	case os.Getenv(envConfigDefaultPath) != "":
		dir := os.Getenv(envConfigDefaultPath)
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return filepath.Join(dir, defaultConfigName)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, defaultConfigName)
	}
	return defaultConfigName
}

func writeDefaultConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
