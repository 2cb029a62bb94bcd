package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server   ServerSection `toml:"server"`
	Limits   LimitsSection `toml:"limits"`
	Channels []SeedChannel `toml:"channels"`
}

type ServerSection struct {
	ListenAddr    string `toml:"listen_addr"`
	WebSocketAddr string `toml:"websocket_addr"` // empty disables WebSocket
	AllowCreate   bool   `toml:"allow_create"`   // joining an unknown channel creates it
}

type LimitsSection struct {
	MaxMessageLength  int     `toml:"max_message_length"`
	MessagesPerSecond float64 `toml:"messages_per_second"` // 0 disables rate limiting
	MessageBurst      int     `toml:"message_burst"`
}

type SeedChannel struct {
	Name  string `toml:"name"`
	Topic string `toml:"topic"`
}

// Config is the runtime configuration of a Server
type Config struct {
	ListenAddr        string
	WebSocketAddr     string
	AllowCreate       bool
	MaxMessageLength  int
	MessagesPerSecond float64
	MessageBurst      int
	WriteTimeout      time.Duration // per packet write to one client, 0 = none
	Channels          []SeedChannel
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":10000",
		AllowCreate:       true,
		MaxMessageLength:  4096,
		MessagesPerSecond: 5,
		MessageBurst:      10,
		WriteTimeout:      DefaultWriteTimeout,
		Channels: []SeedChannel{
			{Name: "general", Topic: "General discussion"},
			{Name: "random", Topic: "Off-topic chat"},
		},
	}
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	cfg := DefaultConfig()
	return TOMLConfig{
		Server: ServerSection{
			ListenAddr:    cfg.ListenAddr,
			WebSocketAddr: cfg.WebSocketAddr,
			AllowCreate:   cfg.AllowCreate,
		},
		Limits: LimitsSection{
			MaxMessageLength:  cfg.MaxMessageLength,
			MessagesPerSecond: cfg.MessagesPerSecond,
			MessageBurst:      cfg.MessageBurst,
		},
		Channels: cfg.Channels,
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return TOMLConfig{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := DefaultTOMLConfig()
		// Can still run on defaults when the file cannot be written
		_ = writeDefaultConfig(path, config)
		return config, nil
	}

	config := DefaultTOMLConfig()
	// A file that lists channels replaces the default set entirely
	config.Channels = nil
	meta, err := toml.DecodeFile(path, &config)
	if err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if meta.IsDefined("channels") {
		config.Channels = dedupeChannels(config.Channels)
	} else {
		config.Channels = DefaultConfig().Channels
	}

	return config, nil
}

func dedupeChannels(channels []SeedChannel) []SeedChannel {
	seen := make(map[string]bool, len(channels))
	out := make([]SeedChannel, 0, len(channels))
	for _, ch := range channels {
		name := strings.TrimSpace(ch.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, SeedChannel{Name: name, Topic: ch.Topic})
	}
	return out
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

	header := `# neighborchat server configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to Config, keeping defaults for unset values
func (c *TOMLConfig) ToServerConfig() Config {
	cfg := DefaultConfig()

	if c.Server.ListenAddr != "" {
		cfg.ListenAddr = c.Server.ListenAddr
	}
	cfg.WebSocketAddr = c.Server.WebSocketAddr
	cfg.AllowCreate = c.Server.AllowCreate
	if c.Limits.MaxMessageLength > 0 {
		cfg.MaxMessageLength = c.Limits.MaxMessageLength
	}
	if c.Limits.MessagesPerSecond >= 0 {
		cfg.MessagesPerSecond = c.Limits.MessagesPerSecond
	}
	if c.Limits.MessageBurst > 0 {
		cfg.MessageBurst = c.Limits.MessageBurst
	}
	cfg.Channels = dedupeChannels(c.Channels)

	return cfg
}
