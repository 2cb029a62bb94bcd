package client

import (
	"strings"

	"go.uber.org/zap"
)

// ResolveServerAddress picks the server to connect to. An explicit address
// wins; otherwise the last server reached successfully is reused, and the
// configured default is the final fallback.
func ResolveServerAddress(explicit string, history HistoryStore, config *TOMLConfig, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}

	if addr := strings.TrimSpace(explicit); addr != "" {
		return addr
	}

	if history != nil {
		if addr := history.LastServer(); addr != "" {
			logger.Debug("using last successful server", zap.String("addr", addr))
			return addr
		}
	}

	if config != nil {
		if addr := config.GetServerAddress(); addr != "" {
			return addr
		}
	}

	return "localhost:" + DefaultPort
}

// RememberServer returns a connect hook that records addr as the last
// successful server. Failures are logged and otherwise ignored.
func RememberServer(history HistoryStore, logger *zap.Logger) func(addr string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(addr string) {
		if history == nil {
			return
		}
		if err := history.SetLastServer(addr); err != nil {
			logger.Warn("failed to remember server", zap.String("addr", addr), zap.Error(err))
		}
	}
}
