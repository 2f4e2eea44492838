package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	RunLog   RunLogConfig   `mapstructure:"runlog"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	if c.Path != "" {
		return c.Path
	}
	return "./data/polytrack.db"
}

// RunLogConfig holds connection settings for the shared run log store
// (a Supabase project exposing the scrape_history table and RPC functions
// over PostgREST).
type RunLogConfig struct {
	URL                string        `mapstructure:"url"`
	APIKey             string        `mapstructure:"api_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MinIntervalMinutes int           `mapstructure:"min_interval_minutes"`
}

type ScraperConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	PageSize      int           `mapstructure:"page_size"`
	MaxMarkets    int           `mapstructure:"max_markets"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ProgressEvery int           `mapstructure:"progress_every"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:3001",
	})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/polytrack.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("runlog.timeout", 15*time.Second)
	v.SetDefault("runlog.min_interval_minutes", 55)
	v.SetDefault("scraper.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("scraper.page_size", 100)
	v.SetDefault("scraper.max_markets", 1000)
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("scraper.progress_every", 50)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("runlog.url", "SUPABASE_URL")
	v.BindEnv("runlog.api_key", "SUPABASE_SERVICE_KEY")
	v.BindEnv("scraper.base_url", "GAMMA_API_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
