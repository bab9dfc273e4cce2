package config

import (
	"os"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

const (
	// EnvironmentDevelopment exposes the canonical development environment
	// identifier for callers outside the config package.
	EnvironmentDevelopment = environmentDevelopment
	// EnvironmentProduction exposes the canonical production environment
	// identifier.
	EnvironmentProduction = environmentProduction
	// EnvironmentStaging exposes the canonical staging environment
	// identifier.
	EnvironmentStaging = environmentStaging
)

var environmentAliases = map[string]string{
	"prod": environmentProduction,
	"stag": environmentStaging,
}

// AppEnvironment reads the application environment from APP_ENV, normalises
// known aliases and defaults to development when unset.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether the provided environment should behave
// like a production deployment. Production-like environments are stricter
// about configuration errors such as missing Telegram credentials.
func IsProductionLike(env string) bool {
	switch env {
	case environmentProduction, environmentStaging:
		return true
	default:
		return false
	}
}
