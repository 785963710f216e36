package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (KART_API_KEY_PEPPER)" flag:"api-key-pepper"`
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
	Redis        RedisConfig
	Offers       OffersConfig
	Badge        BadgeConfig
}

// RedisConfig points at the optional active-offer cache. An empty Addr
// disables caching.
type RedisConfig struct {
	Addr     string `default:"" usage:"Redis address for the offer cache (host:port)" flag:"redis-addr"`
	Password string `default:"" usage:"Redis password" flag:"redis-password"`
	DB       int    `default:"0" usage:"Redis database number" flag:"redis-db"`
}

// OffersConfig controls combo offer lookups.
type OffersConfig struct {
	LookupTimeout time.Duration `default:"2s" usage:"Offer catalog lookup timeout; slower lookups price without combos" flag:"offers-lookup-timeout"`
	CacheTTL      time.Duration `default:"30s" usage:"How long active offers stay cached" flag:"offers-cache-ttl"`
}

// BadgeConfig controls the combo badge hint.
type BadgeConfig struct {
	Window        time.Duration `default:"15m" usage:"Minimum time between badge hints per session; 0 shows once per session" flag:"badge-window"`
	SweepInterval time.Duration `default:"5m" usage:"How often expired badge records are dropped" flag:"badge-sweep-interval"`
}

// RateLimitConfig sizes the per-client token bucket: Max requests of burst,
// refilled evenly over Window.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests allowed per window per client"`
	Window time.Duration `default:"1m"  usage:"Refill period of the rate limit bucket"`
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

// LoadConfig loads configuration from a .env file, environment variables,
// YAML config files, and applies platform-specific defaults. Variables
// already set in the environment take precedence over .env.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	case c.Offers.LookupTimeout <= 0:
		return errors.Errorf("offers lookup timeout must be positive, got %s", c.Offers.LookupTimeout)
	case c.Offers.CacheTTL < 0:
		return errors.Errorf("offers cache TTL must not be negative, got %s", c.Offers.CacheTTL)
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.Errorf("rate limit needs positive max and window, got %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	case c.Badge.Window < 0:
		return errors.Errorf("badge window must not be negative, got %s", c.Badge.Window)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
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
