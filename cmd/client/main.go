package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/client/ui"
	"github.com/aeolun/neighborchat/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

// restoreLimit is how many archived messages per channel are shown at startup
const restoreLimit = 200

type options struct {
	server      string
	configPath  string
	nickname    string
	historyPath string
	noHistory   bool
	metricsAddr string
	logLevel    string
	logFile     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "neighborchat [server]",
		Short: "Terminal client for neighborchat servers",
		Long: `Connects to a neighborchat server and keeps the connection alive,
reconnecting automatically when it drops.

The server may be given as host, host:port, tcp://host:port or
ws://host:port/ws. Without one, the last server reached is used.`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.server = args[0]
			}
			return runChat(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", client.DefaultConfigPath(), "Path to config file")
	flags.StringVar(&opts.historyPath, "history", "", "Path to the history database (overrides config)")
	flags.BoolVar(&opts.noHistory, "no-history", false, "Do not read or write the history database")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	flags.StringVar(&opts.logFile, "log-file", "", "Log file (overrides config)")

	root.Flags().StringVarP(&opts.server, "server", "s", "", "Server address")
	root.Flags().StringVarP(&opts.nickname, "nickname", "n", "", "Nickname to chat as")
	root.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	root.AddCommand(newServersCmd(opts))
	return root
}

// loadConfig reads the config file and applies flag overrides. A handled
// config error returns a nil config and nil error.
func loadConfig(cmd *cobra.Command, opts *options) (*client.TOMLConfig, error) {
	config, err := client.LoadClientConfig(opts.configPath)
	if err != nil {
		if client.HandleConfigError(err, cmd.ErrOrStderr()) {
			return nil, nil
		}
		return nil, err
	}

	if opts.historyPath != "" {
		config.Local.HistoryDB = opts.historyPath
	}
	if opts.noHistory {
		config.Local.HistoryEnabled = false
	}
	if opts.logLevel != "" {
		config.Log.Level = opts.logLevel
	}
	if opts.logFile != "" {
		config.Log.File = opts.logFile
	}
	if opts.nickname != "" {
		config.Local.Nickname = opts.nickname
	}
	if opts.metricsAddr != "" {
		config.Metrics.ListenAddr = opts.metricsAddr
	}
	return &config, nil
}

func openHistory(config *client.TOMLConfig, logger *zap.Logger) (*client.History, error) {
	if !config.Local.HistoryEnabled {
		return nil, nil
	}
	path, err := config.GetHistoryDBPath()
	if err != nil {
		return nil, err
	}
	return client.OpenHistory(path, logger)
}

func runChat(cmd *cobra.Command, opts *options) error {
	config, err := loadConfig(cmd, opts)
	if config == nil {
		return err
	}

	// The terminal belongs to the UI, so logs always go to a file
	if config.Log.File == "" {
		config.Log.File = defaultLogFile(config)
	}
	logger, err := client.NewLogger(config.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store := client.NewMessageStore()
	var sink client.MessageSink = store
	var history client.HistoryStore

	h, err := openHistory(config, logger)
	if err != nil {
		// Chatting without an archive beats not chatting
		logger.Warn("history disabled", zap.Error(err))
	} else if h != nil {
		defer h.Close()
		if err := h.Restore(store, restoreLimit); err != nil {
			logger.Warn("failed to restore history", zap.Error(err))
		}
		sink = client.Tee(store, h)
		history = h
	}

	nickname := config.Local.Nickname
	if nickname == "" && history != nil {
		nickname = history.LastNickname()
	}
	if nickname != "" {
		if valid, err := protocol.ValidateNickname(nickname); err == nil {
			nickname = valid
		} else {
			logger.Warn("ignoring invalid nickname", zap.String("nickname", nickname), zap.Error(err))
			nickname = ""
		}
	}
	builder := protocol.NewPacketBuilder(nickname)

	addr := client.ResolveServerAddress(opts.server, history, config, logger)

	reg := prometheus.NewRegistry()
	metrics := client.NewMetrics(reg)

	state := client.NewChatState()
	state.SetLogger(logger)
	dispatcher := client.NewDispatcher(state, sink)
	dispatcher.SetLogger(logger)

	connOpts := []client.ConnectionOption{
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithDialTimeout(config.DialTimeout()),
	}
	if config.Connection.ThrottleBytes > 0 {
		connOpts = append(connOpts, client.WithThrottle(config.Connection.ThrottleBytes))
	}

	supervisor := client.NewSupervisor(addr, state, dispatcher,
		client.WithRetryDelay(config.RetryDelay()),
		client.WithQueueSize(config.Connection.QueueSize),
		client.WithSupervisorLogger(logger),
		client.WithSupervisorMetrics(metrics),
		client.WithConnectionOptions(connOpts...),
		client.WithOnConnect(client.RememberServer(history, logger)),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if config.Metrics.ListenAddr != "" {
		srv := startMetricsServer(config.Metrics.ListenAddr, reg, logger)
		defer shutdownMetricsServer(srv, logger)
	}

	if config.UI.DesktopNotifications {
		go client.WatchNotifications(ctx, state, client.DesktopNotifier{}, builder.Nickname, logger)
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- supervisor.Run(ctx)
	}()

	model := ui.NewModel(state, store, supervisor, builder, ui.Options{
		ShowTimestamps:  config.UI.ShowTimestamps,
		TimestampFormat: config.UI.TimestampFormat,
		ServerAddr:      supervisor.Addr(),
		OnNickname: func(name string) {
			if history == nil {
				return
			}
			if err := history.SetLastNickname(name); err != nil {
				logger.Warn("failed to save nickname", zap.Error(err))
			}
		},
	})
	defer model.Close()

	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()

	cancel()
	if runErr := <-runDone; runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Warn("supervisor stopped", zap.Error(runErr))
	}
	return err
}

func defaultLogFile(config *client.TOMLConfig) string {
	if path, err := config.GetHistoryDBPath(); err == nil && path != "" {
		return filepath.Join(filepath.Dir(path), "client.log")
	}
	return filepath.Join(os.TempDir(), "neighborchat-client.log")
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}

func shutdownMetricsServer(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}

func newServersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List servers this client has connected to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd, opts)
			if config == nil {
				return err
			}
			config.Local.HistoryEnabled = true

			history, err := openHistory(config, zap.NewNop())
			if err != nil {
				return err
			}
			defer history.Close()

			servers, err := history.KnownServers()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(servers) == 0 {
				fmt.Fprintln(out, ui.StatusStyle.Render("No servers yet"))
				return nil
			}

			addrStyle := lipgloss.NewStyle().Foreground(ui.PrimaryColor).Bold(true).Width(32)
			for _, s := range servers {
				fmt.Fprintf(out, "%s %s\n",
					addrStyle.Render(s.Address),
					ui.MessageMetaStyle.Render(fmt.Sprintf("%d connections, last %s",
						s.ConnectCount, client.FormatRelativeTime(s.LastSuccessAt))))
			}
			return nil
		},
	}
}
