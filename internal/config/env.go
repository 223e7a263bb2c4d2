package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Color    bool   `envconfig:"COLOR" default:"true"`
	// ConfigDir is the user-level configuration directory.
	// Empty means "$HOME/.agentgate".
	ConfigDir string `envconfig:"CONFIG_DIR" default:""`
}

type GateEnv struct {
	BridgeTimeout time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"5m"`

	APICallLimit  int           `envconfig:"API_CALL_LIMIT" default:"100"`
	APICallWindow time.Duration `envconfig:"API_CALL_WINDOW" default:"1h"`
	CommandLimit  int           `envconfig:"COMMAND_LIMIT" default:"50"`
	CommandWindow time.Duration `envconfig:"COMMAND_WINDOW" default:"5m"`
}

type Env struct {
	BaseEnv
	GateEnv
}

const namespace = "AGENTGATE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// UserConfigDir resolves the user-level configuration directory, creating it
// if it does not exist yet.
func (e *BaseEnv) UserConfigDir() (string, error) {
	dir := e.ConfigDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".agentgate")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
