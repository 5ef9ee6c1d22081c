// Package config loads the daemon configuration: defaults, an optional YAML
// file, then environment overrides, in that order.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrBadThreshold   = errors.New("threshold must be between 1 and the number of key servers")
	ErrNoKeyServers   = errors.New("at least one key server is required")
	ErrBadServerKey   = errors.New("key server key must be hex-encoded")
	ErrBadStoreKind   = errors.New("session store must be memory or badger")
	ErrMissingDataDir = errors.New("badger session store requires a data dir")
)

type Config struct {
	RPC     RPCConfig     `yaml:"rpc"`
	Session SessionConfig `yaml:"session"`
	Seal    SealConfig    `yaml:"seal"`
	Limits  LimitsConfig  `yaml:"limits"`
}

type RPCConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	Store         string        `yaml:"store"`
	DataDir       string        `yaml:"dataDir"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// UnmarshalYAML accepts durations in Go syntax ("30m", "45s") rather than raw
// nanosecond integers.
func (s *SessionConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		TTL           string `yaml:"ttl"`
		Store         string `yaml:"store"`
		DataDir       string `yaml:"dataDir"`
		SweepInterval string `yaml:"sweepInterval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Store = raw.Store
	s.DataDir = raw.DataDir
	if raw.TTL != "" {
		ttl, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("session.ttl: %w", err)
		}
		s.TTL = ttl
	}
	if raw.SweepInterval != "" {
		interval, err := time.ParseDuration(raw.SweepInterval)
		if err != nil {
			return fmt.Errorf("session.sweepInterval: %w", err)
		}
		s.SweepInterval = interval
	}
	return nil
}

type SealConfig struct {
	PackageID        string            `yaml:"packageId"`
	Threshold        int               `yaml:"threshold"`
	VerifyKeyServers *bool             `yaml:"verifyKeyServers"`
	OpenMode         bool              `yaml:"openMode"`
	KeyServers       []KeyServerEntry  `yaml:"keyServers"`
	AppGrants        map[string]string `yaml:"appGrants"`
}

type KeyServerEntry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Key  string `yaml:"key"`
}

type LimitsConfig struct {
	SessionRequestsPerSecond float64 `yaml:"sessionRequestsPerSecond"`
	SessionRequestBurst      int     `yaml:"sessionRequestBurst"`
}

func Default() Config {
	return Config{
		RPC: RPCConfig{Addr: "127.0.0.1:8791"},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			Store:         "memory",
			SweepInterval: 5 * time.Minute,
		},
		Seal: SealConfig{
			Threshold: 2,
		},
		Limits: LimitsConfig{
			SessionRequestsPerSecond: 2,
			SessionRequestBurst:      10,
		},
	}
}

// LoadFromPath merges defaults, the YAML file at path (optional), and env
// overrides.
func LoadFromPath(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, err
		}
		Merge(&cfg, parsed)
	}
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

func Merge(dst *Config, src Config) {
	if src.RPC.Addr != "" {
		dst.RPC.Addr = src.RPC.Addr
	}
	if src.RPC.Token != "" {
		dst.RPC.Token = src.RPC.Token
	}
	if src.Session.TTL != 0 {
		dst.Session.TTL = src.Session.TTL
	}
	if src.Session.Store != "" {
		dst.Session.Store = src.Session.Store
	}
	if src.Session.DataDir != "" {
		dst.Session.DataDir = src.Session.DataDir
	}
	if src.Session.SweepInterval != 0 {
		dst.Session.SweepInterval = src.Session.SweepInterval
	}
	if src.Seal.PackageID != "" {
		dst.Seal.PackageID = src.Seal.PackageID
	}
	if src.Seal.Threshold != 0 {
		dst.Seal.Threshold = src.Seal.Threshold
	}
	if src.Seal.VerifyKeyServers != nil {
		dst.Seal.VerifyKeyServers = src.Seal.VerifyKeyServers
	}
	if src.Seal.OpenMode {
		dst.Seal.OpenMode = true
	}
	if len(src.Seal.KeyServers) > 0 {
		dst.Seal.KeyServers = src.Seal.KeyServers
	}
	if len(src.Seal.AppGrants) > 0 {
		dst.Seal.AppGrants = src.Seal.AppGrants
	}
	if src.Limits.SessionRequestsPerSecond != 0 {
		dst.Limits.SessionRequestsPerSecond = src.Limits.SessionRequestsPerSecond
	}
	if src.Limits.SessionRequestBurst != 0 {
		dst.Limits.SessionRequestBurst = src.Limits.SessionRequestBurst
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEMVAULT_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := os.Getenv("MEMVAULT_RPC_TOKEN"); v != "" {
		cfg.RPC.Token = v
	}
	if v := os.Getenv("MEMVAULT_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv("MEMVAULT_SESSION_STORE"); v != "" {
		cfg.Session.Store = v
	}
	if v := os.Getenv("MEMVAULT_DATA_DIR"); v != "" {
		cfg.Session.DataDir = v
	}
	if v := os.Getenv("MEMVAULT_OPEN_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Seal.OpenMode = b
		}
	}
}

// VerifyEnabled resolves the verification profile. Verification defaults on;
// open mode forces it off and is the only way to turn it off implicitly.
func (c SealConfig) VerifyEnabled() bool {
	if c.OpenMode {
		return false
	}
	if c.VerifyKeyServers != nil {
		return *c.VerifyKeyServers
	}
	return true
}

// Validate rejects configurations the daemon cannot safely start with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Session.Store) {
	case "memory":
	case "badger":
		if c.Session.DataDir == "" {
			return ErrMissingDataDir
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadStoreKind, c.Session.Store)
	}
	if len(c.Seal.KeyServers) == 0 {
		return ErrNoKeyServers
	}
	if c.Seal.Threshold < 1 || c.Seal.Threshold > len(c.Seal.KeyServers) {
		return fmt.Errorf("%w: %d of %d", ErrBadThreshold, c.Seal.Threshold, len(c.Seal.KeyServers))
	}
	for _, srv := range c.Seal.KeyServers {
		if _, err := hex.DecodeString(srv.Key); err != nil {
			return fmt.Errorf("%w: server %s", ErrBadServerKey, srv.Name)
		}
	}
	return nil
}

// ServerKey decodes the hex key material for one key server entry.
func (e KeyServerEntry) ServerKey() ([]byte, error) {
	return hex.DecodeString(e.Key)
}
