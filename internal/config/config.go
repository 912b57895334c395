package config

import (
	"fmt"
	"net"
	"strconv"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string       `json:"version"          yaml:"version"`
	Server  ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`
	GRPC    GRPCConfig   `json:"grpc,omitempty"   yaml:"grpc,omitempty"`
	Model   ModelConfig  `json:"model,omitempty"  yaml:"model,omitempty"`
	Log     LogConfig    `json:"log,omitempty"    yaml:"log,omitempty"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host                   string     `json:"host,omitempty"                     yaml:"host,omitempty"`
	PredictPaths           []string   `json:"predict_paths,omitempty"            yaml:"predict_paths,omitempty"`
	CORS                   CORSConfig `json:"cors,omitempty"                     yaml:"cors,omitempty"`
	Port                   int        `json:"port,omitempty"                     yaml:"port,omitempty"`
	MaxBodyBytes           int64      `json:"max_body_bytes,omitempty"           yaml:"max_body_bytes,omitempty"`
	ShutdownTimeoutSeconds int        `json:"shutdown_timeout_seconds,omitempty" yaml:"shutdown_timeout_seconds,omitempty"`
}

// CORSConfig holds the cross-origin policy.
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	Enabled        bool     `json:"enabled"                   yaml:"enabled"`
}

// GRPCConfig holds configuration for the optional gRPC server.
type GRPCConfig struct {
	Enabled bool `json:"enabled"        yaml:"enabled"`
	Port    int  `json:"port,omitempty" yaml:"port,omitempty"`
}

// ModelConfig holds the location of the model artifact.
type ModelConfig struct {
	Path string `json:"path" yaml:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `json:"level,omitempty"   yaml:"level,omitempty"`
	File   string `json:"file,omitempty"    yaml:"file,omitempty"`
	ToFile bool   `json:"to_file,omitempty" yaml:"to_file,omitempty"`
}

// HTTPAddr returns the host:port the HTTP server binds to.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GRPCAddr returns the host:port the gRPC server binds to.
func (c *Config) GRPCAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.GRPC.Port))
}

// Validate checks invariants the schema cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid http port %d", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port <= 0 || c.GRPC.Port > 65535) {
		return fmt.Errorf("config: invalid grpc port %d", c.GRPC.Port)
	}
	if c.GRPC.Enabled && c.GRPC.Port == c.Server.Port {
		return fmt.Errorf("config: grpc port %d collides with http port", c.GRPC.Port)
	}
	if len(c.Server.PredictPaths) == 0 {
		return fmt.Errorf("config: at least one predict path is required")
	}
	if c.Model.Path == "" {
		return fmt.Errorf("config: model path is required")
	}

	return nil
}
