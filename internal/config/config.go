package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"MC_ADDR" default:":8765"`
	SocketPath  string `envconfig:"MC_SOCKET"`
	DBPath      string `envconfig:"MC_DB_PATH" default:"missionctl.db"`
	KeysFile    string `envconfig:"MC_KEYS_FILE"`

	// Agent liveness
	HeartbeatGrace time.Duration `envconfig:"MC_HEARTBEAT_GRACE" default:"5m"`
	SweepInterval  time.Duration `envconfig:"MC_SWEEP_INTERVAL" default:"1m"`

	// Gateway (optional; without one the gateway routes answer 503 and
	// /api/health reports missing_config)
	GatewayURL   string `envconfig:"OPENCLAW_GATEWAY_URL"`
	GatewayToken string `envconfig:"OPENCLAW_GATEWAY_TOKEN"`
}

// GatewayEnabled returns true if gateway credentials are configured.
func (c *Config) GatewayEnabled() bool {
	return c.GatewayURL != "" && c.GatewayToken != ""
}

// MissingGateway names the unset gateway variables, for the health report.
func (c *Config) MissingGateway() []string {
	var missing []string
	if c.GatewayURL == "" {
		missing = append(missing, "OPENCLAW_GATEWAY_URL")
	}
	if c.GatewayToken == "" {
		missing = append(missing, "OPENCLAW_GATEWAY_TOKEN")
	}
	return missing
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
