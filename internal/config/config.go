// Package config handles viewer configuration loading and management.
package config

import (
	"fmt"
	"time"
)

// Transport names accepted by SyncConfig.Transport.
const (
	TransportPoll = "poll"
	TransportPush = "push"
)

// Frame names accepted by SyncConfig.PushFrame.
const (
	FrameLocal = "local"
	FrameScene = "scene"
)

// Config holds all viewer settings.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sync    SyncConfig    `yaml:"sync"`
	Render  RenderConfig  `yaml:"render"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds simulation server endpoints.
type ServerConfig struct {
	BaseURL        string        `yaml:"base_url"` // HTTP endpoints (/scene_id, /scene_data, ...)
	PushURL        string        `yaml:"push_url"` // websocket endpoint for the push transport
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SyncConfig holds update protocol settings.
type SyncConfig struct {
	Transport        string        `yaml:"transport"`
	IdentityInterval time.Duration `yaml:"identity_interval"`
	StateInterval    time.Duration `yaml:"state_interval"`
	RetryInitial     time.Duration `yaml:"retry_initial"`
	RetryMax         time.Duration `yaml:"retry_max"`
	PushFrame        string        `yaml:"push_frame"`
}

// RenderConfig holds frame driver settings.
type RenderConfig struct {
	FPS           int           `yaml:"fps"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// ExportConfig holds snapshot export settings.
//
// The snapshot at GLTFPath is rewritten every time the scene settles: all
// asset batches of the current generation done and nothing parked, held for
// Settle. A rebuild to a new scene identity, or objects pushed later, lead to
// a fresh snapshot.
type ExportConfig struct {
	GLTFPath string        `yaml:"gltf_path"`
	Binary   bool          `yaml:"binary"`
	Settle   time.Duration `yaml:"settle"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:        "http://127.0.0.1:5000",
			PushURL:        "ws://127.0.0.1:5001/ws",
			RequestTimeout: 5 * time.Second,
		},
		Sync: SyncConfig{
			Transport:        TransportPoll,
			IdentityInterval: time.Second,
			StateInterval:    100 * time.Millisecond,
			RetryInitial:     500 * time.Millisecond,
			RetryMax:         10 * time.Second,
			PushFrame:        FrameLocal,
		},
		Render: RenderConfig{
			FPS:           60,
			StatsInterval: 5 * time.Second,
		},
		Export: ExportConfig{
			Settle: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks that the config can drive a session.
func (c *Config) Validate() error {
	switch c.Sync.Transport {
	case TransportPoll, TransportPush:
	default:
		return fmt.Errorf("unknown transport %q", c.Sync.Transport)
	}
	switch c.Sync.PushFrame {
	case FrameLocal, FrameScene:
	default:
		return fmt.Errorf("unknown push frame %q", c.Sync.PushFrame)
	}
	if c.Sync.IdentityInterval <= 0 || c.Sync.StateInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.Sync.RetryInitial <= 0 || c.Sync.RetryMax < c.Sync.RetryInitial {
		return fmt.Errorf("retry window invalid: initial %v, max %v", c.Sync.RetryInitial, c.Sync.RetryMax)
	}
	if c.Export.Settle < 0 {
		return fmt.Errorf("export settle must not be negative, got %v", c.Export.Settle)
	}
	if c.Render.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.Render.FPS)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server base_url is required")
	}
	if c.Sync.Transport == TransportPush && c.Server.PushURL == "" {
		return fmt.Errorf("server push_url is required for the push transport")
	}
	return nil
}
