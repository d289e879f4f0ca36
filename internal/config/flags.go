package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagServer    = flag.String("server", "", "Simulation server base URL")
	flagPush      = flag.String("push", "", "Push channel websocket URL")
	flagTransport = flag.String("transport", "", "Update transport: poll or push")
	flagExport    = flag.String("export", "", "Write a glTF snapshot each time the scene settles")
	flagWrite     = flag.String("write-config", "", "Write the effective config to this path and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigPath returns the --write-config path, empty when not given.
func WriteConfigPath() string {
	return *flagWrite
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagServer != "" {
		cfg.Server.BaseURL = *flagServer
	}
	if *flagPush != "" {
		cfg.Server.PushURL = *flagPush
	}
	if *flagTransport != "" {
		cfg.Sync.Transport = *flagTransport
	}
	if *flagExport != "" {
		cfg.Export.GLTFPath = *flagExport
	}
}
