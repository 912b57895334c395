package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	defaultHost            = "127.0.0.1"
	defaultHTTPPort        = 5000
	defaultGRPCPort        = 5001
	defaultModelPath       = "random_forest_model.json"
	defaultMaxBodyBytes    = 1 << 20
	defaultShutdownTimeout = 5
)

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return defaultHTTPPort
}

// DefaultGRPCPort returns the default gRPC port.
func DefaultGRPCPort() int {
	return defaultGRPCPort
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Host:                   defaultHost,
			Port:                   defaultHTTPPort,
			PredictPaths:           []string{"/predict", "/api/predict"},
			MaxBodyBytes:           defaultMaxBodyBytes,
			ShutdownTimeoutSeconds: defaultShutdownTimeout,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
		},
		GRPC: GRPCConfig{
			Enabled: false,
			Port:    defaultGRPCPort,
		},
		Model: ModelConfig{
			Path: defaultModelPath,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join("logs", "predictd.log"),
		},
	}
}

// DefaultConfigPath returns the default path for the predictd config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "predictd", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "predictd")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "predictd")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "predictd")
		}
		return filepath.Join(home, ".config", "predictd")
	}
}
