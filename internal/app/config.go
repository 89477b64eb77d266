package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage backends for the persisted cart.
const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (KIRANA_ prefix), flags, or YAML config files.
type Config struct {
	Addr       string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Contentful ContentfulConfig
	Catalog    CatalogConfig
	WhatsApp   WhatsAppConfig `env:"WHATSAPP" yaml:"whatsapp"`
	Storage    StorageConfig
	Store      StoreConfig
	RateLimit  RateLimitConfig
	Graceful   GracefulConfig
}

// ContentfulConfig holds CMS credentials and client tuning.
type ContentfulConfig struct {
	SpaceID     string        `usage:"Contentful space id (KIRANA_CONTENTFUL_SPACE_ID)"`
	AccessToken string        `usage:"Contentful delivery API token (KIRANA_CONTENTFUL_ACCESS_TOKEN)"`
	Environment string        `default:"master" usage:"Contentful environment"`
	BaseURL     string        `default:"https://cdn.contentful.com" usage:"Content Delivery API base URL"`
	PageSize    int           `default:"100" usage:"Entries per page (max 1000)"`
	Concurrency int           `default:"4" usage:"Parallel page requests"`
	Timeout     time.Duration `default:"10s" usage:"Per-request timeout"`
}

// CatalogConfig controls where the catalog comes from and how often it is
// refreshed.
type CatalogConfig struct {
	SnapshotPath    string        `usage:"Serve the catalog from a snapshot file written by catalog-export instead of the CMS"`
	RefreshInterval time.Duration `default:"0s" usage:"Background catalog refresh interval, 0 disables"`
}

// WhatsAppConfig holds the order handoff contact.
type WhatsAppConfig struct {
	Contact string `usage:"Store WhatsApp number in international format (KIRANA_WHATSAPP_CONTACT)"`
}

// StorageConfig selects and configures the cart persistence backend.
type StorageConfig struct {
	Backend     string        `default:"file" usage:"Cart storage backend: file, redis or postgres"`
	Key         string        `default:"cart-storage" usage:"Key the cart is stored under"`
	Dir         string        `default:"data" usage:"Directory for the file backend"`
	RedisURL    string        `usage:"Redis URL for the redis backend"`
	RedisTTL    time.Duration `default:"0s" usage:"Expiry of the stored cart in Redis, 0 keeps it forever"`
	DatabaseURL string        `usage:"PostgreSQL URL for the postgres backend (or DATABASE_URL)"`
}

// StoreConfig holds shopper-facing store details.
type StoreConfig struct {
	MinimumOrder string `default:"100" usage:"Minimum order value shown on the landing page"`
	ServiceArea  string `default:"MPR Urban City" usage:"Delivery area shown on the landing page"`
}

// RateLimitConfig controls the per-client sliding window rate limiter on
// mutating requests.
type RateLimitConfig struct {
	Max    int           `default:"120" usage:"Max mutating requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and flags, applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KIRANA",
		Files:     []string{"config.yaml", "/etc/kirana/config.yaml"},
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

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	if c.Catalog.SnapshotPath == "" {
		if c.Contentful.SpaceID == "" {
			return errors.New("contentful space id is required: set KIRANA_CONTENTFUL_SPACE_ID or KIRANA_CATALOG_SNAPSHOT_PATH")
		}
		if c.Contentful.AccessToken == "" {
			return errors.New("contentful access token is required: set KIRANA_CONTENTFUL_ACCESS_TOKEN or KIRANA_CATALOG_SNAPSHOT_PATH")
		}
	}
	if c.WhatsApp.Contact == "" {
		return errors.New("whatsapp contact is required: set KIRANA_WHATSAPP_CONTACT")
	}
	if _, err := decimal.NewFromString(c.Store.MinimumOrder); err != nil {
		return errors.Wrapf(err, "invalid minimum order %q", c.Store.MinimumOrder)
	}

	switch c.Storage.Backend {
	case StorageFile:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis storage requires KIRANA_STORAGE_REDIS_URL")
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("postgres storage requires KIRANA_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the KIRANA_ settings.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
