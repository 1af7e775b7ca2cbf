package storefront

import (
	"fmt"
	"time"

	"github.com/shopsphere/storefront-core/pkg/config"
	"github.com/shopsphere/storefront-core/pkg/money"
)

// Config holds everything the storefront client needs. Values come from
// the environment via Load; hosts embedding the client can also fill the
// struct directly.
type Config struct {
	// APIBaseURL is the root of the storefront backend API.
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:9090/api"`

	// GatewayKey is the publishable payment gateway key handed to the widget.
	GatewayKey string `env:"GATEWAY_KEY" envDefault:"rzp_test_RYSJp9L9UYqbbt"`

	Currency    string `env:"CURRENCY" envDefault:"INR"`
	Merchant    string `env:"MERCHANT_NAME" envDefault:"ShopSphere"`
	Description string `env:"ORDER_DESCRIPTION" envDefault:"Order Payment"`
	ThemeColor  string `env:"THEME_COLOR" envDefault:"#3399cc"`

	// ShippingFee is the flat shipping surcharge, e.g. "99.00".
	ShippingFee string `env:"SHIPPING_FEE" envDefault:"99.00"`

	// PollInterval is how often the badge broadcaster reconciles the cart
	// count against the backend.
	PollInterval time.Duration `env:"CART_POLL_INTERVAL" envDefault:"10s"`

	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT" envDefault:"30s"`
	MaxRetries    int           `env:"HTTP_MAX_RETRIES" envDefault:"3"`

	// CircuitBreaker enables the circuit breaker in front of backend calls.
	CircuitBreaker bool `env:"CIRCUIT_BREAKER_ENABLED" envDefault:"true"`

	// TracingEnabled turns on span export to the OTLP endpoint.
	TracingEnabled bool   `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3-letter ISO code, got %q", c.Currency)
	}
	if _, err := money.Parse(c.ShippingFee); err != nil {
		return fmt.Errorf("SHIPPING_FEE: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("CART_POLL_INTERVAL must be positive")
	}
	return nil
}

// shippingFee returns the parsed shipping surcharge. validate has already
// checked the string parses.
func (c *Config) shippingFee() money.Money {
	return money.MustParse(c.ShippingFee)
}
