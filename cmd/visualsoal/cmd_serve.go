package main

import (
	"context"
	"errors"
	"fmt"

	"visualsoal/internal/config"
	"visualsoal/internal/logging"
	"visualsoal/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

// serveCmd exposes the controller over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow API for a browser front end",
	Long: `Starts the HTTP bridge. A browser renderer reads the state from
GET /api/state (or the /api/events stream) and drives the pipeline with
POST /api/analyze and POST /api/render.

Logging settings in the config file are re-applied when the file changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(a.ctrl, stageTimeout())
	srv.SetAccessLog(logger.Named("http"))

	watcher, err := config.NewWatcher(configPath(), func(c *config.Config) {
		logging.Configure(c.LoggingSettings())
		logger.Info("logging settings reloaded", zap.Bool("debug_mode", c.Logging.DebugMode), zap.String("level", c.Logging.Level))
	})
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := watcher.Start(gctx); err != nil {
		// The config directory may not exist yet; serving works without reloads.
		logger.Warn("config watcher disabled", zap.Error(err))
	}
	defer watcher.Stop()

	g.Go(func() error {
		logger.Info("serving", zap.String("addr", addr), zap.String("history", cfg.History.Backend))
		fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", addr)
		return srv.Run(gctx, addr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
