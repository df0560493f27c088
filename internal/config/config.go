package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Handshake variants for announcing presence to the server. The query
// variant puts userId in the WebSocket URL; the frame variant sends an
// explicit online envelope right after the socket opens. The client issues
// exactly one of the two per connection.
const (
	HandshakeQuery = "query"
	HandshakeFrame = "frame"
)

// Config represents the global ~/.ngobrol/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	UserID         string   `toml:"user_id"`
	ServerURL      string   `toml:"server_url"`
	APIBaseURL     string   `toml:"api_base_url"`
	Handshake      string   `toml:"handshake"`
	TypingWindow   duration `toml:"typing_window"`
	MetricsAddr    string   `toml:"metrics_addr"`
}

// duration wraps time.Duration so it reads as "3s" in TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a config with the out-of-the-box values for a local server.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		ServerURL:      "ws://localhost:8080/ws",
		APIBaseURL:     "http://localhost:8080",
		Handshake:      HandshakeQuery,
		TypingWindow:   duration{3 * time.Second},
		MetricsAddr:    "127.0.0.1:9161",
	}
}

// Load reads config from the given path. Returns an error if the file is
// missing or malformed. Missing fields fall back to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Handshake != HandshakeQuery && c.Handshake != HandshakeFrame {
		return fmt.Errorf("invalid handshake %q: must be %q or %q", c.Handshake, HandshakeQuery, HandshakeFrame)
	}
	if c.TypingWindow.Duration <= 0 {
		return fmt.Errorf("typing_window must be positive, got %s", c.TypingWindow.Duration)
	}
	return nil
}

// TypingExpiry returns the typing indicator window as a plain duration.
func (c *Config) TypingExpiry() time.Duration {
	return c.TypingWindow.Duration
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
