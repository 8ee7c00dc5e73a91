package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fishda-monitor/pkg/database"
)

// EnvPrefix namespaces every environment override, e.g. FISHDA_DATABASE_HOST
const EnvPrefix = "FISHDA"

// Config is the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MonitorConfig holds pond monitoring behaviour
type MonitorConfig struct {
	Timezone           string        `mapstructure:"timezone"`
	AlertCooldown      time.Duration `mapstructure:"alert_cooldown"`
	WiFiConfirmTimeout time.Duration `mapstructure:"wifi_confirm_timeout"`
	HistoryLimit       int           `mapstructure:"history_limit"`
	Operator           string        `mapstructure:"operator"`
}

// Postgres converts the section into connection settings for pkg/database
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// Location resolves the configured time zone
func (m MonitorConfig) Location() (*time.Location, error) {
	return time.LoadLocation(m.Timezone)
}

// LoadConfig loads configuration from .env, ./config.yaml and FISHDA_* variables
func LoadConfig() (*Config, error) {
	return Load(".")
}

// Load reads configuration with dir as the search path for .env and config.yaml.
// Both files are optional; environment variables win over file values.
func Load(dir string) (*Config, error) {
	envFile := dir + string(os.PathSeparator) + ".env"
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fishda")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "fishda")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", time.Minute)

	v.SetDefault("logging.level", "info")

	v.SetDefault("monitor.timezone", "Asia/Manila")
	v.SetDefault("monitor.alert_cooldown", 5*time.Minute)
	v.SetDefault("monitor.wifi_confirm_timeout", 10*time.Second)
	v.SetDefault("monitor.history_limit", 500)
	v.SetDefault("monitor.operator", "operator")
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if _, err := c.Monitor.Location(); err != nil {
		return fmt.Errorf("monitor.timezone %q: %w", c.Monitor.Timezone, err)
	}

	durations := map[string]time.Duration{
		"server.read_timeout":          c.Server.ReadTimeout,
		"server.write_timeout":         c.Server.WriteTimeout,
		"monitor.alert_cooldown":       c.Monitor.AlertCooldown,
		"monitor.wifi_confirm_timeout": c.Monitor.WiFiConfirmTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}

	// the WiFi handler holds its response until the device confirms
	if c.Monitor.WiFiConfirmTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("monitor.wifi_confirm_timeout (%s) must be shorter than server.write_timeout (%s)",
			c.Monitor.WiFiConfirmTimeout, c.Server.WriteTimeout)
	}

	if c.Monitor.HistoryLimit <= 0 {
		return fmt.Errorf("monitor.history_limit must be positive, got %d", c.Monitor.HistoryLimit)
	}
	return nil
}
