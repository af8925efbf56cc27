// Package config resolves ambient environment settings once at startup into
// an explicit value that is threaded through constructors. Nothing in the
// request path reads environment variables directly.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	// EnvDebug enables debug mode when set to exactly "1".
	EnvDebug = "MCPKIT_DEBUG"
	// EnvEnvironment tags log entries with a deployment environment.
	EnvEnvironment = "MCPKIT_ENV"
)

// DefaultEnvironment is used when EnvEnvironment is unset.
const DefaultEnvironment = "development"

// Config carries process-wide settings resolved at startup.
type Config struct {
	// DebugMode controls whether error responses may carry debug payloads.
	DebugMode bool
	// Environment is a deployment tag attached to structured log entries.
	Environment string
}

// FromEnv resolves a Config from the current process environment.
// Debug mode requires the exact string "1"; "true", "0", and everything
// else mean disabled.
func FromEnv() Config {
	env := os.Getenv(EnvEnvironment)
	if env == "" {
		env = DefaultEnvironment
	}
	return Config{
		DebugMode:   os.Getenv(EnvDebug) == "1",
		Environment: env,
	}
}

// Load reads optional .env files into the process environment, then resolves
// a Config. Missing files are not an error; already-set variables win.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}
