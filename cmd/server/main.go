package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/roomchat/internal/app"
	"github.com/vovakirdan/roomchat/internal/config"
	logpkg "github.com/vovakirdan/roomchat/internal/log"
)

type rootOptions struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "roomchat [port]",
		Short:        "Single-room realtime chat server",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config.yaml (created with defaults if missing)")
	flags.StringVar(&opts.overrides.Addr, "addr", "", "HTTP listen address")
	flags.StringVar(&opts.overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.overrides.DatabaseDriver, "db-driver", "", "database driver: sqlite or postgres")
	flags.StringVar(&opts.overrides.DatabasePath, "db-path", "", "sqlite database file")
	flags.StringVar(&opts.overrides.DatabaseURL, "db-url", "", "postgres connection URL")
	flags.StringVar(&opts.overrides.StaticDir, "static-dir", "", "directory with static assets served at /")
	flags.IntVar(&opts.overrides.BatchSize, "batch-size", 0, "history page size")

	root.AddCommand(newServeCmd(opts), newUserCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [port]",
		Short: "Run the chat server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, args)
		},
	}
}

// loadConfig resolves defaults < file < env < flags.
func loadConfig(opts *rootOptions) (*config.Config, *zerolog.Logger, error) {
	bootLogger := logpkg.New(opts.overrides.LogLevel)

	cfg, path, err := config.Load(bootLogger, opts.configPath)
	if err != nil {
		return nil, bootLogger, err
	}
	cfg.UpdateFrom(opts.overrides)

	logger := logpkg.New(cfg.LogLevel)
	logger.Debug().Str("path", path).Msg("config loaded")
	return &cfg, logger, nil
}

func runServe(ctx context.Context, opts *rootOptions, args []string) error {
	if len(args) == 1 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		opts.overrides.Addr = fmt.Sprintf(":%d", port)
	}

	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting roomchat server")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
