package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	Auth struct {
		Issuer       string `mapstructure:"issuer"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`

	AI struct {
		DefaultProvider string  `mapstructure:"default_provider"`
		DefaultModel    string  `mapstructure:"default_model"`
		OpenAIKey       string  `mapstructure:"openai_key"`
		GoogleKey       string  `mapstructure:"google_key"`
		EmbeddingModel  string  `mapstructure:"embedding_model"`
		MaxTokens       int     `mapstructure:"max_tokens"`
		Temperature     float64 `mapstructure:"temperature"`
	} `mapstructure:"ai"`

	Stripe StripeConfig `mapstructure:"stripe"`

	Calendar CalendarConfig `mapstructure:"calendar"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// StripeConfig holds the payment provider settings.
type StripeConfig struct {
	SecretKey       string `mapstructure:"secret_key"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
	ProPriceID      string `mapstructure:"pro_price_id"`
	BusinessPriceID string `mapstructure:"business_price_id"`
	SuccessURL      string `mapstructure:"success_url"`
	CancelURL       string `mapstructure:"cancel_url"`
}

// CalendarConfig holds the Google Calendar OAuth client settings.
type CalendarConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// LoadConfig loads the configuration from a file and the environment.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("DRIVEHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("environment", "DEV")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("ai.default_provider", "openai")
	viper.SetDefault("ai.default_model", "gpt-4o-mini")
	viper.SetDefault("ai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("ai.max_tokens", 4096)

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine: everything can come from env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Auth.Issuer = normalizeIssuer(config.Auth.Issuer)

	return &config, nil
}

// normalizeIssuer ensures the provided OIDC issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact, so users can paste the URL straight from their IdP console.
func normalizeIssuer(input string) string {
	iss := strings.TrimSpace(input)
	if strings.HasSuffix(iss, "/") {
		iss = strings.TrimRight(iss, "/")
	}
	return iss
}
