package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr: "0.0.0.0:8080",
		Contentful: ContentfulConfig{
			SpaceID:     "space",
			AccessToken: "token",
		},
		WhatsApp: WhatsAppConfig{Contact: "919999999999"},
		Storage:  StorageConfig{Backend: StorageFile, Key: "cart-storage", Dir: "data"},
		Store:    StoreConfig{MinimumOrder: "100", ServiceArea: "MPR Urban City"},
	}
}

func TestConfig_Validate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "Valid", mutate: func(*Config) {}},
		{
			name:   "MissingSpaceID",
			mutate: func(c *Config) { c.Contentful.SpaceID = "" },
			errMsg: "space id is required",
		},
		{
			name:   "MissingAccessToken",
			mutate: func(c *Config) { c.Contentful.AccessToken = "" },
			errMsg: "access token is required",
		},
		{
			name: "SnapshotWithoutCredentials",
			mutate: func(c *Config) {
				c.Contentful = ContentfulConfig{}
				c.Catalog.SnapshotPath = "catalog.json.gz"
			},
		},
		{
			name:   "MissingContact",
			mutate: func(c *Config) { c.WhatsApp.Contact = "" },
			errMsg: "whatsapp contact is required",
		},
		{
			name:   "BadMinimumOrder",
			mutate: func(c *Config) { c.Store.MinimumOrder = "a hundred" },
			errMsg: "invalid minimum order",
		},
		{
			name:   "RedisWithoutURL",
			mutate: func(c *Config) { c.Storage.Backend = StorageRedis },
			errMsg: "KIRANA_STORAGE_REDIS_URL",
		},
		{
			name: "Redis",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageRedis
				c.Storage.RedisURL = "redis://localhost:6379/0"
			},
		},
		{
			name:   "PostgresWithoutURL",
			mutate: func(c *Config) { c.Storage.Backend = StoragePostgres },
			errMsg: "DATABASE_URL",
		},
		{
			name: "Postgres",
			mutate: func(c *Config) {
				c.Storage.Backend = StoragePostgres
				c.Storage.DatabaseURL = "postgres://localhost/kirana"
			},
		},
		{
			name:   "UnknownBackend",
			mutate: func(c *Config) { c.Storage.Backend = "s3" },
			errMsg: `unknown storage backend "s3"`,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Run("FromEnvironment", func(t *testing.T) {
		t.Setenv("PORT", "3000")
		t.Setenv("DATABASE_URL", "postgres://platform/db")
		t.Setenv("REDIS_URL", "redis://platform:6379")

		cfg := validConfig()
		cfg.applyPlatformDefaults()

		assert.Equal(t, "0.0.0.0:3000", cfg.Addr)
		assert.Equal(t, "postgres://platform/db", cfg.Storage.DatabaseURL)
		assert.Equal(t, "redis://platform:6379", cfg.Storage.RedisURL)
	})
	t.Run("ExplicitWins", func(t *testing.T) {
		t.Setenv("PORT", "3000")
		t.Setenv("DATABASE_URL", "postgres://platform/db")

		cfg := validConfig()
		cfg.Addr = "127.0.0.1:9090"
		cfg.Storage.DatabaseURL = "postgres://explicit/db"
		cfg.applyPlatformDefaults()

		assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
		assert.Equal(t, "postgres://explicit/db", cfg.Storage.DatabaseURL)
	})
}
