package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

type options struct {
	configPath  string
	listen      string
	wsListen    string
	metricsAddr string
	logLevel    string
	logFormat   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "neighborchat-server",
		Short:         "Reference neighborchat server",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.configPath, "config", "~/.neighborchat/server.toml", "Path to config file")
	flags.StringVar(&opts.listen, "listen", "", "TCP listen address (overrides config)")
	flags.StringVar(&opts.wsListen, "ws-listen", "", "WebSocket listen address (overrides config)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")

	return root
}

func run(ctx context.Context, opts *options) error {
	logger, err := client.NewLogger(client.LogSection{Level: opts.logLevel, Format: opts.logFormat})
	if err != nil {
		return err
	}
	defer logger.Sync()

	fileConfig, err := server.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	config := fileConfig.ToServerConfig()
	if opts.listen != "" {
		config.ListenAddr = opts.listen
	}
	if opts.wsListen != "" {
		config.WebSocketAddr = opts.wsListen
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.NewServer(config,
		server.WithLogger(logger),
		server.WithMetrics(server.NewMetrics(reg)),
	)
	if err := srv.Start(); err != nil {
		return err
	}

	logger.Info("neighborchat server started",
		zap.String("version", Version),
		zap.String("config", opts.configPath),
		zap.String("tcp", srv.Addr()),
		zap.String("websocket", srv.WebSocketAddr()),
		zap.Bool("allow_create", config.AllowCreate))
	for _, ch := range config.Channels {
		logger.Info("channel", zap.String("name", ch.Name), zap.String("topic", ch.Topic))
	}

	var metricsServer *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", opts.metricsAddr))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
