package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/predictd/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// FromEnv reads the environment from PREDICTD_ENV, defaulting to development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.PredictdEnv))
}

// Parse maps a raw value to an Environment. Unknown values fall back to development.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
