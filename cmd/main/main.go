package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

type rootOpts struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:          "stache",
		Short:        "Render mustache templates from disk or a database",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "./config.json", "path to the JSON config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCommand(opts),
		newRenderCommand(opts),
		newSnapshotCommand(opts),
	)
	return cmd
}

// setup loads the configuration and builds the logger the commands share.
func (o *rootOpts) setup() (*ConfigManager, *slog.Logger, error) {
	cm, err := NewConfigManager(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	level := cm.Get().Server.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	cm.SetLogger(logger)
	return cm, logger, nil
}

func newServeCommand(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the render and snapshot HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actionChan := make(chan string, 1)

			go func() {
				osSignalChan := make(chan os.Signal, 1)
				signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
				<-osSignalChan
				actionChan <- actionShutdown
			}()

			for {
				action, err := run(opts, actionChan)
				if err != nil {
					return err
				}
				if action != actionRestart {
					return nil
				}
			}
		},
	}
}

// run hosts the API server until it is shut down or restarted, and returns
// the action that stopped it.
func run(opts *rootOpts, actionChan chan string) (string, error) {
	cm, logger, err := opts.setup()
	if err != nil {
		return "", err
	}
	config := cm.Get()
	logger.Info("Starting server cycle...")

	if err = os.MkdirAll(config.Server.DataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := openDB(config.Server.DatabasePath)
	if err != nil {
		return "", err
	}

	server, err := NewServer(cm, logger, db, actionChan)
	if err != nil {
		_ = db.Close()
		return "", fmt.Errorf("failed to create server object: %w", err)
	}

	apiHttpServer := &http.Server{
		Addr:              config.Server.ApiAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Api server failed", "error", err)
			actionChan <- actionShutdown
		}
	}()

	action := <-actionChan

	logger.Info("Stopping server for " + action + "...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = apiHttpServer.Shutdown(ctx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	server.Close()

	logger.Info("Closing database connection.")
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
	return action, nil
}
