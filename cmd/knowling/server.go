package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/server"
	"github.com/hyperjump/knowling/internal/watcher"
)

var serverSyncExisting bool

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server and watch the inbox directories",
	Long: `Start the HTTP server. New note files that appear in the watched directories are
imported as notes. Files already present are only imported with --sync.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openNotebook()
		if err != nil {
			return err
		}
		defer c.Close()
		return runServer(cmd.Context(), c)
	},
}

func runServer(ctx context.Context, c *Components) error {
	cfg, logger, nb := c.Config, c.Logger, c.Notebook

	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Recursive,
		nb.MatchesImport,
		func(path string) {
			if _, err := nb.ImportFile(context.Background(), path); err != nil {
				logger.Warn("watch import failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		return err
	}
	defer watchSvc.Stop()
	if serverSyncExisting {
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(nb, cfg, logger, server.WithWatch(watchSvc, c.ConfigPath))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info("Shutting down...")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().BoolVar(&serverSyncExisting, "sync", false, "import files already present in watched directories")
}
