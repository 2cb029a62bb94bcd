package client

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from a [log] section. An empty file logs to
// stderr; a terminal front end should always pass a file since it owns the
// screen.
func NewLogger(section LogSection) (*zap.Logger, error) {
	var config zap.Config
	if section.Format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zapcore.InfoLevel
	if section.Level != "" {
		if err := level.Set(section.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", section.Level, err)
		}
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if section.File != "" {
		path, err := expandHome(section.File)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		config.OutputPaths = []string{path}
		config.ErrorOutputPaths = []string{path}
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
