package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/issuechat-server/internal/config"
	"github.com/vovakirdan/issuechat-server/internal/core"
	"github.com/vovakirdan/issuechat-server/internal/notify"
	"github.com/vovakirdan/issuechat-server/internal/store"
	"github.com/vovakirdan/issuechat-server/internal/store/badgerdb"
	"github.com/vovakirdan/issuechat-server/internal/store/memory"
	"github.com/vovakirdan/issuechat-server/internal/store/mongodb"
	"github.com/vovakirdan/issuechat-server/internal/store/postgres"
	"github.com/vovakirdan/issuechat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/issuechat-server/internal/transport/http"
)

const connectTimeout = 10 * time.Second

// App wires together storage, notifications, core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	directory       *sqlite.SQLiteStore
	messages        store.MessageLog
	dispatcher      *notify.Dispatcher
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dir, err := sqlite.New(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("init directory: %w", err)
	}
	logger.Info().Str("db_path", cfg.Storage.SQLitePath).Msg("directory initialized")

	messages, err := openMessageLog(ctx, cfg.Storage, dir)
	if err != nil {
		_ = dir.Close()
		return nil, fmt.Errorf("init message log: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("message log initialized")

	sender, err := newSender(cfg.Notify, logger)
	if err != nil {
		_ = closeLog(messages, dir)
		_ = dir.Close()
		return nil, fmt.Errorf("init notifications: %w", err)
	}
	dispatcher := notify.NewDispatcher(sender, notify.Options{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		Timeout:     cfg.Notify.Timeout,
		FrontendURL: cfg.Notify.FrontendURL,
	}, logger)

	hub := core.NewHub(messages, dir, dir, dispatcher, logger)
	server := transporthttp.NewServer(hub, dir, dispatcher, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		directory:       dir,
		messages:        messages,
		dispatcher:      dispatcher,
		log:             logger,
	}, nil
}

// openMessageLog selects the message log backend. The sqlite driver shares the directory database.
func openMessageLog(ctx context.Context, cfg config.StorageConfig, dir *sqlite.SQLiteStore) (store.MessageLog, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Driver {
	case "sqlite", "":
		return dir, nil
	case "badger":
		return badgerdb.Open(cfg.BadgerPath)
	case "mongo":
		return mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case "postgres":
		return postgres.Connect(ctx, cfg.PostgresDSN)
	case "memory":
		return memory.New(nil), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newSender(cfg config.NotifyConfig, logger *zerolog.Logger) (notify.Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn().Msg("notify.smtp_host not set, notifications are logged only")
		return notify.LogSender{Logger: logger}, nil
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.From,
		Timeout:  cfg.Timeout,
	})
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup drains pending notifications and closes the stores.
func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.dispatcher.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("notifications not fully drained")
	}
	stats := a.dispatcher.Stats()
	a.log.Info().
		Uint64("delivered", stats.Delivered).
		Uint64("failed", stats.Failed).
		Uint64("dropped", stats.Dropped).
		Int64("abandoned", stats.Abandoned).
		Msg("notification dispatcher stopped")

	if err := closeLog(a.messages, a.directory); err != nil {
		a.log.Warn().Err(err).Msg("failed to close message log")
	}
	if err := a.directory.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Info().Msg("store closed")
	}
}

// closeLog closes a message log that does not share the directory database.
func closeLog(messages store.MessageLog, dir *sqlite.SQLiteStore) error {
	if s, ok := messages.(*sqlite.SQLiteStore); ok && s == dir {
		return nil
	}
	return messages.Close()
}
