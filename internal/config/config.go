package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // market.timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Market   Market   `mapstructure:"market"`
	Trading  Trading  `mapstructure:"trading"`
	Pricing  Pricing  `mapstructure:"pricing"`
	Auth     Auth     `mapstructure:"auth"`
	Client   Client   `mapstructure:"client"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the database.
// For sqlite only DSN is used. For postgres the DSN wins when set,
// otherwise it is built from the discrete fields.
type Database struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Market holds the configuration of the market calendar.
type Market struct {
	Timezone         string `mapstructure:"timezone"`
	AllowOvernight   bool   `mapstructure:"allow_overnight"`
	SeedDefaultHours bool   `mapstructure:"seed_default_hours"`
}

// Trading holds the configuration for order placement.
type Trading struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// Pricing holds the configuration of the price drift simulator.
type Pricing struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Bound    float64       `mapstructure:"bound"`
	Floor    float64       `mapstructure:"floor"`
}

// Auth holds the configuration for sessions and registration.
type Auth struct {
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	AdminSignupCode string        `mapstructure:"admin_signup_code"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
}

// Client holds the configuration of the stsctl REST client.
type Client struct {
	BaseURL        string  `mapstructure:"base_url"`
	Token          string  `mapstructure:"token"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "sts.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("market.timezone", "America/New_York")
	v.SetDefault("market.allow_overnight", false)
	v.SetDefault("market.seed_default_hours", true)

	v.SetDefault("trading.max_retries", 3)

	v.SetDefault("pricing.enabled", true)
	v.SetDefault("pricing.interval", 5*time.Second)
	v.SetDefault("pricing.bound", 0.05)
	v.SetDefault("pricing.floor", 0.01)

	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.rate_limit", 10)      // requests per second
	v.SetDefault("client.rate_limit_burst", 5) // burst size
	v.SetDefault("client.max_retries", 3)
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "") {
			return errors.New("database.dsn or database.host, database.name and database.user are required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 1 {
		return errors.New("database.max_open_conns must be >= 1")
	}

	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("market.timezone: %w", err)
	}

	if c.Trading.MaxRetries < 1 {
		return errors.New("trading.max_retries must be >= 1")
	}

	if c.Pricing.Enabled && c.Pricing.Interval <= 0 {
		return errors.New("pricing.interval must be > 0 when pricing is enabled")
	}
	if c.Pricing.Bound <= 0 || c.Pricing.Bound >= 1 {
		return fmt.Errorf("pricing.bound must be in (0, 1), got %v", c.Pricing.Bound)
	}
	if c.Pricing.Floor <= 0 {
		return errors.New("pricing.floor must be > 0")
	}

	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be > 0")
	}
	return nil
}
