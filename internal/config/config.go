package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AWSRegion   string `mapstructure:"AWS_REGION"`
	MailFrom    string `mapstructure:"MAIL_FROM"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	TokenTTLHrs int    `mapstructure:"TOKEN_TTL_HOURS"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	StripeAPIKey string
}

// TokenTTL returns the configured JWT lifetime, defaulting to 72 hours.
func (c *Config) TokenTTL() time.Duration {
	if c.TokenTTLHrs <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.TokenTTLHrs) * time.Hour
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv() // Read in environment variables that match

	err := viper.ReadInConfig()
	if err != nil {
		// A missing .env file is fine; everything can come from the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	return &cfg, nil
}
