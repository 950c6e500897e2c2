package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environment files.
const (
	EnvFile            = ".env"
	DevelopmentEnvFile = ".env.local"
)

// Environment is the process configuration read from environment variables.
type Environment struct {
	Mode    string `env:"KENX_ENV"`
	NodeEnv string `env:"NODE_ENV"`

	HTTPHost string `env:"HTTP_HOST"`
	HTTPPort int    `env:"HTTP_PORT"`

	LogLevel  string `env:"KENX_LOG_LEVEL"`
	LogFormat string `env:"KENX_LOG_FORMAT"`

	ConnectTimeout time.Duration `env:"KENX_CONNECT_TIMEOUT" envDefault:"30s"`
	ListenTimeout  time.Duration `env:"KENX_LISTEN_TIMEOUT"  envDefault:"10s"`
	ConnectRetries uint64        `env:"KENX_CONNECT_RETRIES" envDefault:"0"`
	RetryBackoff   time.Duration `env:"KENX_RETRY_BACKOFF"   envDefault:"500ms"`
}

// Development reports whether KENX_ENV, or NODE_ENV when it is unset, selects development mode.
func (e Environment) Development() bool {
	return isDevelopment(e.Mode, e.NodeEnv)
}

func isDevelopment(mode, nodeEnv string) bool {
	if mode == "" {
		mode = nodeEnv
	}

	switch strings.ToLower(mode) {
	case "development", "dev":
		return true
	default:
		return false
	}
}

// ParseEnvironment reads an Environment from vars.
func ParseEnvironment(vars map[string]string) (Environment, error) {
	var environment Environment

	err := env.ParseWithOptions(&environment, env.Options{Environment: vars}) //nolint:exhaustruct
	if err != nil {
		return Environment{}, fmt.Errorf("error getting env configs: %w", err)
	}

	return environment, nil
}

// environFromProcess snapshots os.Environ.
func environFromProcess() map[string]string {
	return env.ToMap(os.Environ())
}

// readEnvFile returns the variables of a dotenv file; a missing file yields none.
func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	return values, nil
}
