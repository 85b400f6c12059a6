package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const (
	defaultAddr      = "0.0.0.0:5000"
	defaultClientURL = "http://localhost:5173"
)

// Config holds the complete application configuration, loadable from
// environment variables (PAY_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:5000" usage:"API server listen address"`
	ClientURL   string `default:"http://localhost:5173" usage:"Storefront origin(s) allowed by CORS, comma separated" flag:"client-url"`
	DatabaseURL string `usage:"PostgreSQL URL of the payment ledger; empty disables the ledger" flag:"database-url"`
	Development bool   `default:"false" usage:"Expose internal error text in 500 responses"`
	Razorpay    RazorpayConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// RazorpayConfig holds the gateway credentials. The secret signs orders and
// verifies completion claims and must never reach a client.
type RazorpayConfig struct {
	KeyID     string        `env:"KEY_ID" usage:"Gateway key id (public)" flag:"key-id"`
	KeySecret string        `env:"KEY_SECRET" usage:"Gateway key secret" flag:"key-secret"`
	BaseURL   string        `env:"BASE_URL" default:"https://api.razorpay.com" usage:"Gateway API base URL"`
	Timeout   time.Duration `env:"TIMEOUT" default:"15s" usage:"Gateway request timeout"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max requests per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "PAY",
		Files:     []string{"config.yaml", "/etc/crackers/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables used by hosting
// platforms and the storefront's .env files (RAZORPAY_KEY_ID, PORT,
// CLIENT_URL, DATABASE_URL) onto fields the PAY_ variables left unset.
func (c *Config) applyPlatformDefaults() {
	if c.Razorpay.KeyID == "" {
		c.Razorpay.KeyID = os.Getenv("RAZORPAY_KEY_ID")
	}
	if c.Razorpay.KeySecret == "" {
		c.Razorpay.KeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("CLIENT_URL"); v != "" && c.ClientURL == defaultClientURL {
		c.ClientURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return errors.New("gateway credentials are required: set PAY_RAZORPAY_KEY_ID and PAY_RAZORPAY_KEY_SECRET (or RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET)")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.Errorf("invalid rate limit %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	}
	if c.Razorpay.Timeout <= 0 {
		return errors.Errorf("invalid gateway timeout %s", c.Razorpay.Timeout)
	}
	return nil
}

// CORSOrigins splits ClientURL into the allowed origins.
func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.ClientURL, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
