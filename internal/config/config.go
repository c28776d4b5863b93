package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/chatgate/domain/entities"
)

// Store drivers
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// Config holds the server configuration.
// Values come from the YAML file first, then the environment overrides them.
type Config struct {
	Host  string `yaml:"host"`
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	JWTSecret       string   `yaml:"jwt_secret"`
	FrontendOrigins []string `yaml:"frontend_origins"`

	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
	DefaultAPIKey   string `yaml:"default_api_key"`

	ProviderTimeout  time.Duration     `yaml:"provider_timeout"`
	StreamChunkDelay time.Duration     `yaml:"stream_chunk_delay"`
	ProviderBaseURLs map[string]string `yaml:"provider_base_urls"`

	StoreDriver   string `yaml:"store_driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	MongoURI      string `yaml:"mongodb_uri"`
	MongoDatabase string `yaml:"mongodb_database"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "8000",
		FrontendOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		ProviderTimeout: 60 * time.Second,
		StoreDriver:     StoreMemory,
		SQLitePath:      "chatgate.db",
		MongoDatabase:   "chatgate",
	}
}

// Load builds the configuration from .env, the optional YAML file at path and the environment
func Load(path string) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("HOST", &c.Host)
	str("PORT", &c.Port)
	str("JWT_SECRET", &c.JWTSecret)
	str("DEFAULT_PROVIDER", &c.DefaultProvider)
	str("DEFAULT_MODEL", &c.DefaultModel)
	str("DEFAULT_API_KEY", &c.DefaultAPIKey)
	str("STORE_DRIVER", &c.StoreDriver)
	str("SQLITE_PATH", &c.SQLitePath)
	str("MONGODB_URI", &c.MongoURI)
	str("MONGODB_DATABASE", &c.MongoDatabase)

	if v, ok := lookup("DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG: %w", err)
		}
		c.Debug = debug
	}
	if v, ok := lookup("FRONTEND_ORIGINS"); ok && v != "" {
		c.FrontendOrigins = splitList(v)
	}
	if err := dur("PROVIDER_TIMEOUT", &c.ProviderTimeout); err != nil {
		return err
	}
	return dur("STREAM_CHUNK_DELAY", &c.StreamChunkDelay)
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreMongo:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	if c.DefaultProvider != "" {
		if _, ok := entities.ParseProviderKind(c.DefaultProvider); !ok {
			return fmt.Errorf("unknown default provider %q", c.DefaultProvider)
		}
	}
	for name := range c.ProviderBaseURLs {
		if _, ok := entities.ParseProviderKind(name); !ok {
			return fmt.Errorf("base url set for unknown provider %q", name)
		}
	}
	return nil
}

// Address returns host:port for the HTTP listener
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}

// HasDefaultCredential reports whether a server-side credential is configured
func (c *Config) HasDefaultCredential() bool {
	return c.DefaultProvider != "" && c.DefaultModel != "" && c.DefaultAPIKey != ""
}

// DefaultKind returns the parsed default provider, if any
func (c *Config) DefaultKind() entities.ProviderKind {
	kind, _ := entities.ParseProviderKind(c.DefaultProvider)
	return kind
}

// BaseURLs returns the vendor endpoint overrides keyed by provider kind
func (c *Config) BaseURLs() map[entities.ProviderKind]string {
	urls := make(map[entities.ProviderKind]string, len(c.ProviderBaseURLs))
	for name, u := range c.ProviderBaseURLs {
		if kind, ok := entities.ParseProviderKind(name); ok {
			urls[kind] = u
		}
	}
	return urls
}

// parseDuration accepts Go durations and bare numbers of milliseconds
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
