package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/whenfree/whenfree/internal/instrumentation"
	"github.com/whenfree/whenfree/internal/logging"
	"github.com/whenfree/whenfree/internal/tools/schedule_tools"
)

func newServeCmd() *cobra.Command {
	var (
		cfgPath   string
		logFormat string
		logLevel  string
		yolo      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Starts an MCP (Model Context Protocol) server on stdio exposing the
schedule, event and availability tools. By default the server is read-only;
pass --yolo to enable the event mutation tools.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath, logFormat, logLevel, yolo)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to the config file (default: user config dir)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable event create/update/delete tools")

	return cmd
}

func runServe(cfgPath, logFormat, logLevel string, yolo bool) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the MCP transport, so all logging goes to stderr.
	logger := logging.Setup(os.Stderr, logFormat, parseLogLevel(logLevel))

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	application, err := newApp(cfgPath, provider.Metrics(), logger)
	if err != nil {
		return err
	}
	defer application.Close()

	var metricsServer *http.Server
	if provider.PrometheusConfigured() && application.cfg.MetricsListen != "" {
		metricsServer = startMetricsServer(application.cfg.MetricsListen, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	mcpSrv := mcpserver.NewMCPServer("whenfree", version,
		mcpserver.WithToolCapabilities(true),
	)

	readOnly := !yolo
	deps := &schedule_tools.Deps{
		Engine:  application.engine,
		Metrics: provider.Metrics(),
		Logger:  logger,
	}
	if err := schedule_tools.RegisterScheduleTools(mcpSrv, deps, readOnly); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	logger.Info("starting MCP server on stdio",
		slog.Bool("read_only", readOnly),
		slog.String("version", version))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
		return nil
	}
}

// startMetricsServer exposes the Prometheus scrape endpoint in the
// background. Failures are logged, not fatal; the MCP server keeps running.
func startMetricsServer(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.Err(err))
		}
	}()
	return srv
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
