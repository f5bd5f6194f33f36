package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/configsync/configsync/internal/audit"
	"github.com/configsync/configsync/internal/auth"
	"github.com/configsync/configsync/internal/backup"
	"github.com/configsync/configsync/internal/config"
	"github.com/configsync/configsync/internal/server"
	"github.com/configsync/configsync/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configsync server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create the audit trail: broker-backed when NATS is configured,
		// synchronous file writes otherwise.
		sink := audit.NewFileSink(cfg.AuditLog)
		var publisher audit.Publisher
		if cfg.NATSURL != "" {
			pub, err := audit.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("audit broker enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("audit broker disabled (CONFIGSYNC_NATS_URL not set), writing trail synchronously")
		}
		trail := audit.NewTrail(publisher, sink, logger)

		// Start the trail writer when the broker is in use.
		var writerCancel context.CancelFunc
		if cfg.NATSURL != "" {
			sub, err := audit.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create trail writer subscriber", "err", err)
			} else {
				writer := audit.NewWriter(sub, sink, logger)
				var writerCtx context.Context
				writerCtx, writerCancel = context.WithCancel(context.Background())
				go func() {
					if err := writer.Run(writerCtx); err != nil {
						logger.Error("trail writer error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("trail writer started", "file", cfg.AuditLog)
			}
		}

		// Create server components.
		issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
		configServer := server.NewConfigServer(store, issuer, trail, logger)

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: configServer.NewHTTPHandler(),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start backup scheduler if any destinations are configured.
		var scheduler *backup.Scheduler
		if cfg.BackupInterval > 0 {
			var dests []backup.Destination

			if cfg.BackupS3Bucket != "" {
				s3Dest, err := backup.NewS3Destination(
					context.Background(),
					cfg.BackupS3Bucket,
					cfg.BackupS3Key,
					cfg.BackupS3Region,
					cfg.BackupS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 backup destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("backup S3 destination enabled", "bucket", cfg.BackupS3Bucket, "key", cfg.BackupS3Key)
				}
			}

			if cfg.BackupFile != "" {
				dests = append(dests, backup.NewFileDestination(cfg.BackupFile))
				logger.Info("backup file destination enabled", "path", cfg.BackupFile)
			}

			if len(dests) > 0 {
				scheduler = backup.NewScheduler(store, dests, cfg.BackupInterval, logger)
				scheduler.Start()
				logger.Info("backup scheduler started", "interval", cfg.BackupInterval)
			}
		}

		logger.Info("configsync server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("backup scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if writerCancel != nil {
			writerCancel()
			logger.Info("trail writer stopped")
		}

		if err := trail.Close(); err != nil {
			logger.Error("error closing audit trail", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
