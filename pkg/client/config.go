package client

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the structure of the client config file
type TOMLConfig struct {
	Connection ConnectionSection `toml:"connection"`
	Local      LocalSection      `toml:"local"`
	UI         UISection         `toml:"ui"`
	Log        LogSection        `toml:"log"`
	Metrics    MetricsSection    `toml:"metrics"`
}

type ConnectionSection struct {
	DefaultServer      string `toml:"default_server"`
	DefaultPort        int    `toml:"default_port"`
	RetryDelaySeconds  int    `toml:"retry_delay_seconds"`
	DialTimeoutSeconds int    `toml:"dial_timeout_seconds"` // 0 = no timeout
	QueueSize          int    `toml:"queue_size"`
	ThrottleBytes      int    `toml:"throttle_bytes_per_sec"` // 0 = unthrottled
}

type LocalSection struct {
	HistoryDB      string `toml:"history_db"`
	HistoryEnabled bool   `toml:"history_enabled"`
	Nickname       string `toml:"nickname"`
}

type UISection struct {
	ShowTimestamps       bool   `toml:"show_timestamps"`
	TimestampFormat      string `toml:"timestamp_format"` // 'relative' or 'absolute'
	DesktopNotifications bool   `toml:"desktop_notifications"`
}

type LogSection struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
	File   string `toml:"file"`   // empty = stderr
}

type MetricsSection struct {
	ListenAddr string `toml:"listen_addr"` // empty disables the /metrics endpoint
}

// ConfigError represents a structured configuration error
type ConfigError struct {
	Path       string
	Message    string
	LineNumber int // 0 if not a parse error
}

func (e *ConfigError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Path, e.Message, e.LineNumber)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// getXDGConfigHome returns the XDG config directory
func getXDGConfigHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// getXDGDataHome returns the XDG data directory
func getXDGDataHome() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share")
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/neighborchat/config.toml
func DefaultConfigPath() string {
	return filepath.Join(getXDGConfigHome(), "neighborchat", "config.toml")
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Connection: ConnectionSection{
			DefaultServer:     "localhost",
			DefaultPort:       10000,
			RetryDelaySeconds: int(DefaultRetryDelay / time.Second),
			QueueSize:         DefaultQueueSize,
		},
		Local: LocalSection{
			HistoryDB:      filepath.Join(getXDGDataHome(), "neighborchat", "history.db"),
			HistoryEnabled: true,
		},
		UI: UISection{
			ShowTimestamps:  true,
			TimestampFormat: "absolute",
		},
		Log: LogSection{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadClientConfig loads configuration from a TOML file, creates default if not found.
// Keys missing from the file keep their default values.
func LoadClientConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		// Running without a config file is fine, e.g. on a read-only home
		_ = writeDefaultConfig(path, config)
		return config, nil
	}

	config := DefaultTOMLConfig()
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, &ConfigError{
			Path:       path,
			Message:    cleanErrorMessage(err.Error()),
			LineNumber: extractLineNumber(err.Error()),
		}
	}

	if err := validateConfig(&config); err != nil {
		return TOMLConfig{}, &ConfigError{
			Path:    path,
			Message: err.Error(),
		}
	}

	return config, nil
}

var lineNumberPattern = regexp.MustCompile(`line (\d+)`)

// extractLineNumber tries to extract a line number from a TOML parse error
func extractLineNumber(errMsg string) int {
	matches := lineNumberPattern.FindStringSubmatch(errMsg)
	if len(matches) > 1 {
		if num, err := strconv.Atoi(matches[1]); err == nil {
			return num
		}
	}
	return 0
}

func cleanErrorMessage(errMsg string) string {
	return strings.TrimPrefix(errMsg, "toml: ")
}

func validateConfig(config *TOMLConfig) error {
	var errors []string

	if config.Connection.DefaultPort < 1 || config.Connection.DefaultPort > 65535 {
		errors = append(errors, fmt.Sprintf("Invalid port number: %d (must be 1-65535)", config.Connection.DefaultPort))
	}

	if config.Connection.RetryDelaySeconds < 0 {
		errors = append(errors, "Retry delay cannot be negative")
	}

	if config.Connection.DialTimeoutSeconds < 0 {
		errors = append(errors, "Dial timeout cannot be negative")
	}

	if config.Connection.QueueSize < 1 {
		errors = append(errors, fmt.Sprintf("Invalid queue size: %d (must be at least 1)", config.Connection.QueueSize))
	}

	if config.Connection.ThrottleBytes < 0 {
		errors = append(errors, "Throttle cannot be negative")
	}

	if config.UI.TimestampFormat != "" && config.UI.TimestampFormat != "relative" && config.UI.TimestampFormat != "absolute" {
		errors = append(errors, fmt.Sprintf("Invalid timestamp format: %q (must be 'relative' or 'absolute')", config.UI.TimestampFormat))
	}

	if config.Local.HistoryEnabled && strings.TrimSpace(config.Local.HistoryDB) == "" {
		errors = append(errors, "History database path cannot be empty when history is enabled")
	}

	switch config.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("Invalid log level: %q (must be debug, info, warn or error)", config.Log.Level))
	}

	switch config.Log.Format {
	case "", "console", "json":
	default:
		errors = append(errors, fmt.Sprintf("Invalid log format: %q (must be 'console' or 'json')", config.Log.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("Configuration validation failed:\n  • %s", strings.Join(errors, "\n  • "))
	}

	return nil
}

func writeDefaultConfig(path string, config TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# neighborchat client configuration
# This file was auto-generated with default values
# Edit as needed - changes take effect on next client start

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// GetHistoryDBPath returns the history database path with ~ expanded
func (c *TOMLConfig) GetHistoryDBPath() (string, error) {
	return expandHome(c.Local.HistoryDB)
}

// GetServerAddress returns the full server address (host:port)
func (c *TOMLConfig) GetServerAddress() string {
	server := strings.TrimSpace(c.Connection.DefaultServer)
	if server == "" {
		return ""
	}

	if strings.Contains(server, "://") {
		return server
	}

	port := c.Connection.DefaultPort
	if port <= 0 {
		return server
	}

	return fmt.Sprintf("%s:%d", server, port)
}

// RetryDelay returns the reconnect delay as a duration
func (c *TOMLConfig) RetryDelay() time.Duration {
	return time.Duration(c.Connection.RetryDelaySeconds) * time.Second
}

// DialTimeout returns the connect timeout, zero for none
func (c *TOMLConfig) DialTimeout() time.Duration {
	return time.Duration(c.Connection.DialTimeoutSeconds) * time.Second
}

// ResetConfigToDefault resets the config file to default values.
// If backup is true, the current file is copied aside first.
func ResetConfigToDefault(path string, backup bool) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	if backup {
		backupPath := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("2006-01-02"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	if err := writeDefaultConfig(path, DefaultTOMLConfig()); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
