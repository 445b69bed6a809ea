package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"scanviewer/internal/backend"
	"scanviewer/internal/config"
	"scanviewer/internal/logging"
	"scanviewer/internal/overlay"
	"scanviewer/internal/preflight"
	"scanviewer/internal/server"
	"scanviewer/internal/shell"
)

const lockFileName = "scanviewer.lock"

type serveOptions struct {
	bind          string
	datasetID     int64
	skipPreflight bool
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the annotation viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind := strings.TrimSpace(opts.bind); bind != "" {
				cfg.Server.Bind = bind
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(runCtx, cfg, client, logger, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.bind, "bind", "", "Override the configured listen address")
	cmd.Flags().Int64Var(&opts.datasetID, "dataset", 0, "Select this dataset on startup")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Start even when readiness checks fail")
	return cmd
}

// runServe hosts the viewer until ctx is cancelled. Only one instance may
// serve from a state directory at a time.
func runServe(ctx context.Context, cfg *config.Config, catalog backend.Catalog, logger *slog.Logger, opts serveOptions, out io.Writer) error {
	lockPath := filepath.Join(cfg.Server.StateDir, lockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another scanviewer instance is already serving from %s", cfg.Server.StateDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", logging.Error(err))
		}
	}()

	failed := preflight.Failed(preflight.RunAll(ctx, cfg, catalog))
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String(logging.FieldErrorHint, r.Detail),
		)
		names = append(names, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failed) > 0 && !opts.skipPreflight {
		return fmt.Errorf("preflight failed (use --skip-preflight to ignore): %s", strings.Join(names, "; "))
	}

	var labels overlay.Labels
	if path := strings.TrimSpace(cfg.Viewer.LabelsPath); path != "" {
		labels, err = overlay.LoadLabels(path)
		if err != nil {
			return fmt.Errorf("load labels: %w", err)
		}
	}

	app, err := shell.New(ctx, shell.Options{
		Config:  cfg,
		Catalog: catalog,
		Labels:  labels,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Load(ctx); err != nil {
		if !opts.skipPreflight {
			return err
		}
		logger.Warn("dataset catalog unavailable", logging.Error(err))
	}
	if opts.datasetID > 0 {
		if err := app.SelectDataset(ctx, opts.datasetID); err != nil {
			return err
		}
	}

	srv, err := server.New(cfg, app, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Viewer listening on http://%s\n", srv.Addr())

	<-ctx.Done()
	logger.Info("scanviewer shutting down")
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
