package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cagehq/cage/internal/rules"
)

// Config is the top-level YAML structure.
type Config struct {
	Server  ServerConf   `yaml:"server"`
	Storage StorageConf  `yaml:"storage"`
	Hook    HookConf     `yaml:"hook"`
	Rules   []rules.Rule `yaml:"rules"`
}

// ServerConf holds the collector's listen settings.
type ServerConf struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConf names the directories each component exclusively owns.
type StorageConf struct {
	// CageDir holds the pid record, the offline spool and the server log.
	CageDir string `yaml:"cage_dir"`
	// EventsDir holds the date-partitioned event log.
	EventsDir string `yaml:"events_dir"`
}

// HookConf tunes the per-event forwarder.
type HookConf struct {
	// ServerURL overrides the collector address the forwarder posts to.
	ServerURL string `yaml:"server_url"`
	// TimeoutMs bounds the single delivery attempt.
	TimeoutMs int `yaml:"timeout_ms"`
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BaseURL returns the collector URL the forwarder and CLI talk to.
func (c *Config) BaseURL() string {
	if c.Hook.ServerURL != "" {
		return c.Hook.ServerURL
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// OfflineLogPath is the forwarder-owned spool of failed deliveries.
func (c *Config) OfflineLogPath() string {
	return filepath.Join(c.Storage.CageDir, "hooks-offline.log")
}

// PIDPath is the lifecycle-manager-owned process record.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Storage.CageDir, "server.pid")
}

// ServerLogPath receives the detached server's stdout and stderr.
func (c *Config) ServerLogPath() string {
	return filepath.Join(c.Storage.CageDir, "server.log")
}

// applyDefaults fills unset fields in place.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 4100
	}
	if c.Storage.CageDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Storage.CageDir = filepath.Join(home, ".cage")
	}
	if c.Storage.EventsDir == "" {
		c.Storage.EventsDir = filepath.Join(c.Storage.CageDir, "events")
	}
	if c.Hook.TimeoutMs == 0 {
		c.Hook.TimeoutMs = 5000
	}
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}
