package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (HOTEL_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (HOTEL_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	CouponPepper  string `usage:"Secret mixed into coupon code hashes (HOTEL_COUPON_PEPPER)" flag:"coupon-pepper"`
	APIKeyPepper  string `usage:"HMAC pepper for API key hashing (HOTEL_API_KEY_PEPPER)" flag:"api-key-pepper"`
	WebhookSecret string `usage:"HMAC secret of payment webhooks (HOTEL_WEBHOOK_SECRET)" flag:"webhook-secret"`
	Redis         RedisConfig
	Coupon        CouponConfig
	Booking       BookingConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// RedisConfig points at the optional coupon cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `default:"" usage:"Redis address (host:port) of the coupon cache"`
	Password string `default:"" usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database number"`
}

// CouponConfig tunes coupon lookups.
type CouponConfig struct {
	CacheTTL time.Duration `default:"5m" usage:"TTL of cached coupon snapshots"`
}

// BookingConfig controls the booking lifecycle.
type BookingConfig struct {
	MaxNights       int           `default:"30" usage:"Longest bookable stay in nights"`
	PendingTTL      time.Duration `default:"30m" usage:"Unpaid bookings older than this are cancelled"`
	CleanupInterval time.Duration `default:"1m" usage:"How often stale pending bookings are swept"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
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
		EnvPrefix: "HOTEL",
		Files:     []string{"config.yaml", "/etc/hotel/config.yaml"},
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
		return errors.New("database URL is required: set HOTEL_DATABASE_URL or DATABASE_URL")
	case c.Booking.MaxNights <= 0:
		return errors.Errorf("booking max nights must be positive, got %d", c.Booking.MaxNights)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's HOTEL_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Redis.Addr == "" {
		if v := os.Getenv("REDIS_ADDR"); v != "" {
			c.Redis.Addr = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
