package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SeedFile    string `default:"" usage:"YAML seed file for the memory store; empty uses the bundled seed" flag:"seed-file"`

	APIKeyPepper    string `usage:"HMAC pepper for API key hashing (STORE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	BootstrapAPIKey string `usage:"API key accepted by the memory store" flag:"bootstrap-api-key"`
	UserHeader      string `default:"X-User-ID" usage:"Header carrying the shopper ID" flag:"user-header"`

	Redis         RedisConfig
	PincodeFilter PincodeFilterConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// RedisConfig enables the lookup cache when Addr is set.
type RedisConfig struct {
	Addr        string        `default:"" usage:"Redis address; empty disables the cache"`
	Password    string        `default:"" usage:"Redis password"`
	DB          int           `default:"0" usage:"Redis database"`
	TTL         time.Duration `default:"5m" usage:"Cached record TTL"`
	NegativeTTL time.Duration `default:"1m" usage:"Cached miss TTL"`
	Warm        bool          `default:"false" usage:"Preload every pincode into the cache on start"`
}

// PincodeFilterConfig controls the in-process bloom filter over pincodes.
type PincodeFilterConfig struct {
	Enabled         bool          `default:"true" usage:"Answer unknown pincodes from a bloom filter"`
	FPR             float64       `default:"0.001" usage:"Target false-positive rate"`
	RefreshInterval time.Duration `default:"5m" usage:"Filter rebuild interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiters.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// ValidateMax applies to promotion validation only, per API key and IP.
	ValidateMax int `default:"20" usage:"Max promotion validations per window" flag:"validate-max"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.PincodeFilter.Enabled && (c.PincodeFilter.FPR <= 0 || c.PincodeFilter.FPR >= 1) {
		return errors.Errorf("pincode filter FPR %v out of range (0, 1)", c.PincodeFilter.FPR)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
