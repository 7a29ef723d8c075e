// Manages server configuration stored in config.yaml.

package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/maruel/awth/internal/codec"
	"github.com/maruel/awth/internal/docdb"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const configFile = "config.yaml"

// OnCorrupt values.
const (
	OnCorruptFail  = "fail"
	OnCorruptEmpty = "empty"
)

// Config stores all server-wide configuration.
// Loaded from config.yaml, created with defaults if missing.
type Config struct {
	// JWTSecret is the hex encoded secret used to sign session tokens.
	// Auto-generated if empty on first load.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime of session tokens.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// SaveInterval is the period of the background save loop. 0 disables it;
	// collections are still saved on demand and at shutdown.
	SaveInterval time.Duration `yaml:"save_interval"`

	// Codec is the payload codec used when writing collection files.
	Codec string `yaml:"codec"`

	// Compression is "none", "zstd" or "lz4".
	Compression string `yaml:"compression"`

	// OnCorrupt selects what happens at boot when a collection file cannot be
	// decoded: "fail" refuses to start, "empty" starts with an empty
	// collection and overwrites the file on the next save.
	OnCorrupt string `yaml:"on_corrupt"`

	// SaveRatePerMin limits on-demand saves. 0 means unlimited.
	SaveRatePerMin int `yaml:"save_rate_per_min"`

	// BcryptCost is the cost of password hashes.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TokenTTL:       24 * time.Hour,
		SaveInterval:   30 * time.Second,
		Codec:          codec.Default.Name(),
		Compression:    docdb.CompressionZstd.String(),
		OnCorrupt:      OnCorruptFail,
		SaveRatePerMin: 6,
		BcryptCost:     bcrypt.DefaultCost,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if secret, err := hex.DecodeString(c.JWTSecret); err != nil || len(secret) < 32 {
		return errors.New("jwt_secret must be at least 32 hex encoded bytes")
	}
	if c.TokenTTL < time.Minute {
		return errors.New("token_ttl must be at least 1m")
	}
	if c.SaveInterval < 0 {
		return errors.New("save_interval must be non-negative")
	}
	if c.SaveInterval > 0 && c.SaveInterval < 100*time.Millisecond {
		return errors.New("save_interval must be at least 100ms")
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		return fmt.Errorf("codec must be one of %v, got %q", codec.Names(), c.Codec)
	}
	if _, err := docdb.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("compression: %w", err)
	}
	if !slices.Contains([]string{OnCorruptFail, OnCorruptEmpty}, c.OnCorrupt) {
		return fmt.Errorf("on_corrupt must be %q or %q, got %q", OnCorruptFail, OnCorruptEmpty, c.OnCorrupt)
	}
	if c.SaveRatePerMin < 0 {
		return errors.New("save_rate_per_min must be non-negative")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

// StoreOptions returns the collection options derived from the configuration.
// The configuration must be valid.
func (c *Config) StoreOptions() *docdb.Options {
	cd, _ := codec.ByName(c.Codec)
	comp, _ := docdb.ParseCompression(c.Compression)
	return &docdb.Options{Codec: cd, Compression: comp, Lenient: c.OnCorrupt == OnCorruptEmpty}
}

// Secret returns the decoded JWT secret. The configuration must be valid.
func (c *Config) Secret() []byte {
	b, _ := hex.DecodeString(c.JWTSecret)
	return b
}

// LoadConfig loads configuration from dataDir/config.yaml.
// Creates the file with defaults if it doesn't exist. Missing keys take their
// default value. Auto-generates JWTSecret if empty.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, configFile)
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
		// File doesn't exist, will create with defaults
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}

	modified := false
	if cfg.JWTSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JWTSecret = hex.EncodeToString(secret)
		modified = true
	}
	if modified || errors.Is(err, os.ErrNotExist) {
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save saves configuration to dataDir/config.yaml.
func (c *Config) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, configFile), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}
	return nil
}
