// Package config loads the wayfinder configuration file used by the CLI.
//
// Every field is optional. Values present in the file overlay the engine defaults:
//
//	engine:
//	  advance_on_action: false
//	  locator:
//	    max_attempts: 5
//	    base_delay: 150ms
//	log:
//	  level: debug
//	store: file:.wayfinder/state
//	guides: [guides/]
//	server:
//	  addr: :8080
//	security:
//	  encryption_key: <base64, 32 bytes>
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/wayfinder"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the file looked up when no --config flag is given.
const DefaultPath = "wayfinder.yaml"

// Config is the full configuration file.
type Config struct {
	Engine wayfinder.Config `yaml:"engine"`
	Log    Log              `yaml:"log"`
	// Store selects the persistence backend: memory, file:<dir>, redis://host:port/db or sqlite:<path>.
	Store  string   `yaml:"store"`
	Guides []string `yaml:"guides"`
	// UI is an element fixture file for hosts without a real interface.
	UI       string   `yaml:"ui"`
	Server   Server   `yaml:"server"`
	Security Security `yaml:"security"`
	// ResetInterval discards persisted state older than this when set.
	ResetInterval time.Duration `yaml:"reset_interval"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Server struct {
	Addr        string        `yaml:"addr"`
	CommandWait time.Duration `yaml:"command_wait"`
	Metrics     bool          `yaml:"metrics"`
}

// Security configures the persistence middleware.
type Security struct {
	// EncryptionKey is a base64 AES-256 key. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key"`
	// FallbackKeys are older keys still accepted for decryption.
	FallbackKeys []string `yaml:"fallback_keys"`
	// RedactPatterns are regular expressions of state keys masked before saving.
	RedactPatterns []string `yaml:"redact_patterns"`
	// Fallback serves from memory when the primary store fails.
	Fallback bool `yaml:"fallback"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Engine: wayfinder.DefaultConfig(),
		Log:    Log{Level: "info", Format: "text"},
		Store:  "file:.wayfinder/state",
		Server: Server{Addr: ":8080", CommandWait: 2 * time.Second, Metrics: true},
	}
}

// Load reads path and overlays it on Default. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	// JSON files parse too, being valid YAML.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot type-check.
func (c Config) Validate() error {
	var errs []error
	if c.Engine.Locator.MaxAttempts < 1 {
		errs = append(errs, errors.New("engine.locator.max_attempts must be at least 1"))
	}
	if c.Engine.Locator.Timeout < 0 {
		errs = append(errs, errors.New("engine.locator.timeout must not be negative"))
	}
	if c.Engine.Locator.PollInterval < 0 {
		errs = append(errs, errors.New("engine.locator.poll_interval must not be negative"))
	}
	if c.Engine.PersistTimeout < 0 {
		errs = append(errs, errors.New("engine.persist_timeout must not be negative"))
	}
	if c.ResetInterval < 0 {
		errs = append(errs, errors.New("reset_interval must not be negative"))
	}
	if _, _, err := c.Security.Keys(); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Security.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("security.redact_patterns: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Keys decodes the active and fallback encryption keys. The active key is nil
// when encryption is disabled.
func (s Security) Keys() ([]byte, [][]byte, error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, nil, errors.New("security.fallback_keys needs an encryption_key")
		}
		return nil, nil, nil
	}
	active, err := decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	fallbacks := make([][]byte, 0, len(s.FallbackKeys))
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("security.fallback_keys[%d]: %w", i, err)
		}
		fallbacks = append(fallbacks, key)
	}
	return active, fallbacks, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
