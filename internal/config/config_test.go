package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.BaseURL != "http://127.0.0.1:5000" {
		t.Errorf("expected base url http://127.0.0.1:5000, got %s", cfg.Server.BaseURL)
	}
	if cfg.Sync.Transport != TransportPoll {
		t.Errorf("expected poll transport by default, got %s", cfg.Sync.Transport)
	}
	if cfg.Sync.IdentityInterval != time.Second {
		t.Errorf("expected identity interval 1s, got %v", cfg.Sync.IdentityInterval)
	}
	if cfg.Sync.StateInterval != 100*time.Millisecond {
		t.Errorf("expected state interval 100ms, got %v", cfg.Sync.StateInterval)
	}
	if cfg.Sync.PushFrame != FrameLocal {
		t.Errorf("expected local push frame, got %s", cfg.Sync.PushFrame)
	}
	if cfg.Render.FPS != 60 {
		t.Errorf("expected 60 fps, got %d", cfg.Render.FPS)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Export.Settle != 250*time.Millisecond {
		t.Errorf("expected export settle 250ms, got %v", cfg.Export.Settle)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"transport", func(c *Config) { c.Sync.Transport = "carrier-pigeon" }},
		{"push frame", func(c *Config) { c.Sync.PushFrame = "world" }},
		{"identity interval", func(c *Config) { c.Sync.IdentityInterval = 0 }},
		{"retry window", func(c *Config) { c.Sync.RetryMax = c.Sync.RetryInitial / 2 }},
		{"fps", func(c *Config) { c.Render.FPS = 0 }},
		{"export settle", func(c *Config) { c.Export.Settle = -time.Second }},
		{"base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"push url", func(c *Config) {
			c.Sync.Transport = TransportPush
			c.Server.PushURL = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)

	yamlContent := `
server:
  base_url: "http://sim.local:8080"
  push_url: "ws://sim.local:8081/ws"
  request_timeout: 2s

sync:
  transport: push
  identity_interval: 2s
  state_interval: 50ms
  push_frame: scene

render:
  fps: 30

export:
  gltf_path: "out/scene.glb"
  binary: true

logging:
  level: "debug"
  log_file: "simview.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.BaseURL != "http://sim.local:8080" {
		t.Errorf("expected base url from file, got %s", cfg.Server.BaseURL)
	}
	if cfg.Server.RequestTimeout != 2*time.Second {
		t.Errorf("expected request timeout 2s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Sync.Transport != TransportPush {
		t.Errorf("expected push transport, got %s", cfg.Sync.Transport)
	}
	if cfg.Sync.StateInterval != 50*time.Millisecond {
		t.Errorf("expected state interval 50ms, got %v", cfg.Sync.StateInterval)
	}
	if cfg.Sync.PushFrame != FrameScene {
		t.Errorf("expected scene frame, got %s", cfg.Sync.PushFrame)
	}
	// Not in the file: keeps its default.
	if cfg.Sync.RetryMax != 10*time.Second {
		t.Errorf("expected default retry max, got %v", cfg.Sync.RetryMax)
	}
	if cfg.Render.FPS != 30 {
		t.Errorf("expected 30 fps, got %d", cfg.Render.FPS)
	}
	if cfg.Export.GLTFPath != "out/scene.glb" || !cfg.Export.Binary {
		t.Errorf("unexpected export config %+v", cfg.Export)
	}
	if cfg.Logging.LogFile != "simview.log" {
		t.Errorf("expected log file 'simview.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
render:
  fps: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/simview.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestLoadFromFileUnknownKey(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)
	if err := os.WriteFile(configPath, []byte("sync:\n  state_intervall: 5ms\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error for unknown key, got nil")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.Render.FPS != Default().Render.FPS {
		t.Errorf("expected default fps, got %d", cfg.Render.FPS)
	}
}

func TestConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))
	t.Setenv("HOME", tmpDir)
	t.Setenv("AppData", filepath.Join(tmpDir, "appdata"))
	t.Setenv(EnvConfig, "")
	os.Chdir(tmpDir)

	if path := configFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	userDir, err := os.UserConfigDir()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	userFile := filepath.Join(userDir, "simview", fileName)
	if err := os.MkdirAll(filepath.Dir(userFile), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userFile, []byte("render:\n  fps: 24\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := configFile(); path != userFile {
		t.Errorf("expected user config %s, got %s", userFile, path)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, fileName), []byte("render:\n  fps: 24\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := configFile(); path != fileName {
		t.Errorf("expected working directory config, got %s", path)
	}

	t.Setenv(EnvConfig, "/etc/simview/custom.yaml")
	if path := configFile(); path != "/etc/simview/custom.yaml" {
		t.Errorf("expected config from %s, got %s", EnvConfig, path)
	}

	*flagConfig = "from-flag.yaml"
	defer func() { *flagConfig = "" }()
	if path := configFile(); path != "from-flag.yaml" {
		t.Errorf("expected config from flag, got %s", path)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing file named by env, got nil")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "server flag",
			setup: func() { *flagServer = "http://other:9000" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Server.BaseURL != "http://other:9000" {
					t.Errorf("expected server override, got %s", cfg.Server.BaseURL)
				}
			},
			teardown: func() { *flagServer = "" },
		},
		{
			name: "transport and push flags",
			setup: func() {
				*flagTransport = TransportPush
				*flagPush = "ws://other:9001/ws"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Sync.Transport != TransportPush {
					t.Errorf("expected push transport, got %s", cfg.Sync.Transport)
				}
				if cfg.Server.PushURL != "ws://other:9001/ws" {
					t.Errorf("expected push url override, got %s", cfg.Server.PushURL)
				}
			},
			teardown: func() {
				*flagTransport = ""
				*flagPush = ""
			},
		},
		{
			name:  "export flag",
			setup: func() { *flagExport = "snap.gltf" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Export.GLTFPath != "snap.gltf" {
					t.Errorf("expected export path, got %s", cfg.Export.GLTFPath)
				}
			},
			teardown: func() { *flagExport = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)

	yamlContent := `
server:
  base_url: "http://from-file:5000"
render:
  fps: 24
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagServer = "http://from-flag:5000"
	defer func() {
		*flagConfig = ""
		*flagServer = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.BaseURL != "http://from-flag:5000" {
		t.Errorf("expected base url from flag, got %s", cfg.Server.BaseURL)
	}
	if cfg.Render.FPS != 24 {
		t.Errorf("expected fps 24 from file, got %d", cfg.Render.FPS)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", fileName)

	cfg := Default()
	cfg.Render.FPS = 90
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Render.FPS != 90 {
		t.Errorf("expected fps 90 after reload, got %d", loaded.Render.FPS)
	}
	if loaded.Export.Settle != cfg.Export.Settle {
		t.Errorf("expected settle %v after reload, got %v", cfg.Export.Settle, loaded.Export.Settle)
	}
}
