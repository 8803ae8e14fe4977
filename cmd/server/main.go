package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/issuechat-server/internal/app"
	"github.com/vovakirdan/issuechat-server/internal/config"
	"github.com/vovakirdan/issuechat-server/internal/log"
)

var (
	configPath string
	addr       string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "issuechat-server",
		Short:         "Real-time issue chat rooms with email notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (created with defaults if missing)")
	rootCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, overrides config")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	bootLogger := log.New("info")
	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := log.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting issuechat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
