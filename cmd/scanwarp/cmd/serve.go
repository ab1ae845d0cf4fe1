package cmd

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

	"github.com/MeKo-Tech/scanwarp/internal/server"
	"github.com/MeKo-Tech/scanwarp/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket job server",
	Long: `Start an HTTP server that accepts jobs and answers each with exactly one
response (done, doneBlob, detected or error).

The server provides the following endpoints:
  POST /v1/jobs    - Run a JSON job request
  POST /v1/upload  - Run a job on an uploaded image (multipart)
  GET  /v1/ws      - Stream job requests and responses over WebSocket
  GET  /health     - Health check with worker statistics
  GET  /metrics    - Prometheus metrics

Sources are fetched over http(s) or passed inline as data: URIs or uploads.
Server-local paths and private network hosts are refused unless
--allow-local-files or --allow-private-hosts is given.

Examples:
  scanwarp serve
  scanwarp serve --port 8080
  scanwarp serve --host 0.0.0.0 --port 3000 --workers 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		metricsEnabled := cfg.Server.MetricsEnabled
		if cmd.Flags().Changed("metrics") {
			metricsEnabled, _ = cmd.Flags().GetBool("metrics")
		}

		if cmd.Flags().Changed("allow-local-files") {
			cfg.Server.AllowLocalFiles, _ = cmd.Flags().GetBool("allow-local-files")
		}
		if cmd.Flags().Changed("allow-private-hosts") {
			cfg.Server.AllowPrivateHosts, _ = cmd.Flags().GetBool("allow-private-hosts")
		}
		cfg = cfg.ForServe()
		if cfg.Source.AllowFiles {
			slog.Warn("Clients may read server-local files as job sources")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		pool, err := newPool(cfg, server.ObserveJob)
		if err != nil {
			return fmt.Errorf("failed to initialize workers: %w", err)
		}

		srv := server.NewServer(server.Config{
			Host:           host,
			Port:           port,
			CORSOrigin:     corsOrigin,
			MaxUploadMB:    int64(maxUploadSize),
			TimeoutSec:     timeout,
			Version:        version.Version,
			MetricsEnabled: metricsEnabled,
		}, pool)

		mux := http.NewServeMux()
		srv.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("Starting scanwarp server", "host", host, "port", port, "workers", pool.Stats().Workers)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		// In-flight requests hold pool slots, so the HTTP side stops first.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		pool.Close()
		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics on /metrics")
	serveCmd.Flags().Bool("allow-local-files", false, "let clients use server-local paths as sources")
	serveCmd.Flags().Bool("allow-private-hosts", false, "let clients fetch from loopback and private network hosts")
}
