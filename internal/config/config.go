package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendKeychain = "keychain"
	BackendOpenBao  = "openbao"
)

// Config holds persistent settings loaded from ~/.strongbox/config.yaml.
type Config struct {
	Backend     string  `yaml:"backend"`
	Service     string  `yaml:"service"`
	AccessGroup string  `yaml:"access_group"`
	AuditLog    string  `yaml:"audit_log"`
	Metadata    string  `yaml:"metadata"`
	OpenBao     OpenBao `yaml:"openbao"`
}

// OpenBao configures the KV v2 backend.
type OpenBao struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Mount   string `yaml:"mount"`
	Prefix  string `yaml:"prefix"`
}

// Home returns the strongbox home directory (~/.strongbox).
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".strongbox")
}

// DefaultPath returns the default config file path: ~/.strongbox/config.yaml.
func DefaultPath() string {
	dir := Home()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads a YAML config file from path and fills in defaults. If the
// file does not exist, it returns the defaults and no error. An empty or
// all-comment file also returns the defaults with no error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults(Home())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotenv loads environment variables from .env in the working
// directory and the strongbox home. Missing files are ignored; variables
// already set are not overridden.
func LoadDotenv() {
	_ = godotenv.Load(".env")
	if dir := Home(); dir != "" {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
}

func (c *Config) applyEnv() {
	if addr := os.Getenv("BAO_ADDR"); addr != "" {
		c.OpenBao.Address = addr
	}
	if token := os.Getenv("BAO_TOKEN"); token != "" {
		c.OpenBao.Token = token
	}
}

func (c *Config) applyDefaults(home string) {
	if c.Backend == "" {
		c.Backend = BackendKeychain
	}
	if c.Service == "" {
		c.Service = "com.strongbox"
	}
	if c.AuditLog == "" && home != "" {
		c.AuditLog = filepath.Join(home, "audit.log")
	}
	if c.Metadata == "" && home != "" {
		c.Metadata = filepath.Join(home, "secret-metadata.json")
	}
}

// Validate checks the backend selection.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendKeychain, BackendOpenBao:
		return nil
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendKeychain, BackendOpenBao)
	}
}
