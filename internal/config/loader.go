package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/predictd/internal/envvar"
)

//go:embed predictd.v1.schema.json
var embeddedSchema string

const embeddedSchemaURL = "predictd.v1.schema.json"

// ErrNoConfigFile is returned by ResolvePath when no config file could be found.
var ErrNoConfigFile = errors.New("no config file found")

// LoadAndValidate loads and validates the configuration. An empty schemaPath
// selects the embedded schema.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: config validation failed: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Load returns the config at path, or the defaults when path is empty.
// Environment overrides are applied in both cases.
func Load(path, schemaPath string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadAndValidate(path, schemaPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg with PREDICTD_* environment variables.
func ApplyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(envvar.PredictdServerHTTPHost)); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(envvar.PredictdServerHTTPPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", envvar.PredictdServerHTTPPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(envvar.PredictdServerGRPCPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", envvar.PredictdServerGRPCPort, v, err)
		}
		cfg.GRPC.Enabled = port > 0
		cfg.GRPC.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(envvar.PredictdModelPath)); v != "" {
		cfg.Model.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(envvar.PredictdLogLevel)); v != "" {
		cfg.Log.Level = v
	}

	return nil
}

// ResolvePath picks the config file to load.
// Precedence:
// 1. Explicit path (flag).
// 2. PREDICTD_CONFIG environment variable.
// 3. config.yaml in the working directory.
// 4. config.yaml in the default config directory.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := strings.TrimSpace(os.Getenv(envvar.PredictdConfig)); p != "" {
		return p, nil
	}

	candidates := []string{
		"config.yaml",
		filepath.Join(DefaultConfigPath(), "config.yaml"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", ErrNoConfigFile
}

func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(schemaPath)
	}

	return jsonschema.CompileString(embeddedSchemaURL, embeddedSchema)
}
