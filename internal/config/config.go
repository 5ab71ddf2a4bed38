package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config holds every runtime setting, parsed from the environment.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	Gateway GatewayConfig `envPrefix:"GATEWAY_"`
	Partner PartnerConfig `envPrefix:"PARTNER_"`
	SMTP    SMTPConfig    `envPrefix:"SMTP_"`
	Waha    WahaConfig    `envPrefix:"WAHA_"`
}

// GatewayConfig configures the card-processing gateway integration.
type GatewayConfig struct {
	URL         string `env:"URL"`
	KeyHex      string `env:"KEY_HEX"`      // 32 hex chars, AES-128 key
	PayloadID   string `env:"PAYLOAD_ID"`   // data0 identifier of the pgs frame
	CompanyID   string `env:"COMPANY_ID"`
	BranchID    string `env:"BRANCH_ID"`
	Country     string `env:"COUNTRY" envDefault:"MEX"`
	User        string `env:"USER"`
	Password    string `env:"PASSWORD"`
	Merchant    string `env:"MERCHANT"`
	Currency    string `env:"CURRENCY" envDefault:"MXN"`
	ResponseURL string `env:"RESPONSE_URL"`
}

// PartnerConfig configures the licensing provisioning API.
type PartnerConfig struct {
	BaseURL      string `env:"BASE_URL"`
	TokenURL     string `env:"TOKEN_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CustomerID   string `env:"CUSTOMER_ID"`
}

type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM"`
}

type WahaConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://waha:3000"`
	APIKey  string `env:"API_KEY"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether the app runs against the live gateway.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
