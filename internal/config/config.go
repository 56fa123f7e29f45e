// Package config loads runner settings from the environment with sane
// defaults for local use. Every knob can be overridden via BERGHAIN_*
// variables; command-line flags layered on top by the caller win over
// both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all settings the runner needs.
type Config struct {
	// BaseURL is the challenge API endpoint. The scheme may be omitted;
	// the API client assumes https.
	BaseURL string `env:"BERGHAIN_BASE_URL" envDefault:"https://berghain.challenges.listenlabs.ai"`

	// PlayerID overrides the stored player identity when set.
	PlayerID string `env:"BERGHAIN_PLAYER_ID"`

	// ScenarioRoot is the directory containing scenario_<N> folders.
	ScenarioRoot string `env:"BERGHAIN_SCENARIO_ROOT" envDefault:"."`

	// RepoRoot pins the git repository the run workflow commits into.
	// Empty means discover it from the scenario root.
	RepoRoot string `env:"BERGHAIN_REPO_ROOT"`

	// DataDir is where the attempt database and secrets fallback live.
	// Empty means an OS-appropriate per-user directory.
	DataDir string `env:"BERGHAIN_DATA_DIR"`

	// CreateCommand and PlayCommand are the external programs the run
	// workflow shells out to, as whitespace-separated argv strings.
	CreateCommand string `env:"BERGHAIN_CREATE_CMD" envDefault:"python3 create_game.py"`
	PlayCommand   string `env:"BERGHAIN_PLAY_CMD" envDefault:"python3 play_game.py"`

	// ListenAddr is the bind address for the local inspection server.
	ListenAddr string `env:"BERGHAIN_LISTEN_ADDR" envDefault:"127.0.0.1:8077"`

	// HTTPTimeout bounds each challenge API request.
	HTTPTimeout time.Duration `env:"BERGHAIN_HTTP_TIMEOUT" envDefault:"30s"`

	// Capacity and MaxRejections mirror the venue limits enforced
	// server-side. They only shape local pacing decisions.
	Capacity      int `env:"BERGHAIN_CAPACITY" envDefault:"1000"`
	MaxRejections int `env:"BERGHAIN_MAX_REJECTIONS" envDefault:"20000"`
}

// Load parses the environment and fills in the data directory default.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	return cfg, nil
}

// DBPath returns the attempt database location under the data dir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "berghain.db")
}

// SecretsPath returns the plaintext fallback location for stored
// identity when no system keyring is available.
func (c Config) SecretsPath() string {
	return filepath.Join(c.DataDir, "secrets.json")
}

// SplitCommand turns a configured command string into argv form.
func SplitCommand(s string) []string {
	return strings.Fields(s)
}

// defaultDataDir returns an OS-appropriate writable directory.
func defaultDataDir() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, "berghain-runner")
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".berghain-runner")
	}
	return "."
}
