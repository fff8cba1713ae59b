package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress           string      `toml:"RPCAddress"`
	DataDir              string      `toml:"DataDir"`
	LockdropFile         string      `toml:"LockdropFile"`
	EventLogDSN          string      `toml:"EventLogDSN"`
	Environment          string      `toml:"Environment"`
	LogLevel             string      `toml:"LogLevel"`
	LogFile              string      `toml:"LogFile"`
	LogMaxSizeMB         int         `toml:"LogMaxSizeMB"`
	LogMaxBackups        int         `toml:"LogMaxBackups"`
	LogMaxAgeDays        int         `toml:"LogMaxAgeDays"`
	RPCReadHeaderTimeout int         `toml:"RPCReadHeaderTimeout"`
	RPCAuth              RPCAuth     `toml:"rpc_auth"`
	RateLimit            RateLimit   `toml:"rate_limit"`
	EventStream          EventStream `toml:"event_stream"`
	Telemetry            Telemetry   `toml:"telemetry"`
}

// RPCAuth configures bearer JWT verification for mutating RPC methods. Auth is
// disabled when no secret resolves.
type RPCAuth struct {
	HMACSecret    string `toml:"HMACSecret"`
	HMACSecretEnv string `toml:"HMACSecretEnv"`
	Issuer        string `toml:"Issuer"`
	Audience      string `toml:"Audience"`
}

// Enabled reports whether a signing secret is configured.
func (a RPCAuth) Enabled() bool { return strings.TrimSpace(a.HMACSecret) != "" }

// RateLimit bounds requests per client IP.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// EventStream controls the /ws/events websocket feed.
type EventStream struct {
	Disabled       bool     `toml:"Disabled"`
	OriginPatterns []string `toml:"OriginPatterns"`
}

type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.resolveSecret(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8547"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./lockdrop-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = 100
	}
	if cfg.LogMaxBackups <= 0 {
		cfg.LogMaxBackups = 5
	}
	if cfg.LogMaxAgeDays <= 0 {
		cfg.LogMaxAgeDays = 28
	}
	if cfg.RPCReadHeaderTimeout <= 0 {
		cfg.RPCReadHeaderTimeout = 5
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 20
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 40
	}
}

func (c *Config) resolveSecret() error {
	c.RPCAuth.HMACSecret = strings.TrimSpace(c.RPCAuth.HMACSecret)
	env := strings.TrimSpace(c.RPCAuth.HMACSecretEnv)
	if c.RPCAuth.HMACSecret != "" || env == "" {
		return nil
	}
	value := strings.TrimSpace(os.Getenv(env))
	if value == "" {
		return fmt.Errorf("rpc_auth.HMACSecretEnv %s is empty", env)
	}
	c.RPCAuth.HMACSecret = value
	return nil
}

func (c *Config) validate() error {
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit.RequestsPerSecond must not be negative")
	}
	if c.RPCAuth.Enabled() && len(c.RPCAuth.HMACSecret) < 32 {
		return fmt.Errorf("rpc_auth.HMACSecret must be at least 32 bytes")
	}
	return nil
}

// LockdropPath resolves the lockdrop parameter file relative to the data
// directory when it is not absolute.
func (c *Config) LockdropPath() string {
	path := strings.TrimSpace(c.LockdropFile)
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// DatabasePath is the LevelDB directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:   ":8547",
		DataDir:      "./lockdrop-data",
		LockdropFile: "lockdrop.yaml",
		EventLogDSN:  "",
		Environment:  "local",
		LogLevel:     "info",
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
