package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration tree.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Platform PlatformConfig `mapstructure:"platform"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // seconds
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig configures the redis client used for session revocation
// and the async task queue.
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// SessionConfig configures session token issuance and the session cookie.
type SessionConfig struct {
	Secret       string `mapstructure:"secret"`
	Issuer       string `mapstructure:"issuer"`
	CookieName   string `mapstructure:"cookie_name"`
	TTLHours     int    `mapstructure:"ttl_hours"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
}

// PlatformConfig holds tenancy routing settings: the shared base domain
// used for subdomain resolution and hostnames that must never resolve to
// a tenant (local development hosts).
type PlatformConfig struct {
	ReservedHosts  []string `mapstructure:"reserved_hosts"`
	ResolveTimeout int      `mapstructure:"resolve_timeout_ms"`
	DefaultBrand   string   `mapstructure:"default_brand"`
}

// SMTPConfig configures the invitation mail sender.
type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

var globalConfig *Config

// Load reads <env>.yaml from ./config (or the explicit configPath) and
// applies APP_* environment overrides on top.
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env)
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is tolerated so the service can run on env vars
		// alone; any other read error is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("session.cookie_name", "lms_session")
	v.SetDefault("session.issuer", "lms")
	v.SetDefault("session.ttl_hours", 72)
	v.SetDefault("platform.reserved_hosts", []string{"localhost", "127.0.0.1"})
	v.SetDefault("platform.resolve_timeout_ms", 500)
	v.SetDefault("platform.default_brand", "Classroom")
}

// Get returns the global configuration. Load must have been called first.
func Get() *Config {
	if globalConfig == nil {
		panic("config: not loaded, call Load() first")
	}
	return globalConfig
}

// GetDSN builds the Postgres connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the host:port address of the redis server.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TTL returns the session lifetime as a duration.
func (c *SessionConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// ResolveTimeoutDuration bounds the host-resolution directory lookup.
func (c *PlatformConfig) ResolveTimeoutDuration() time.Duration {
	if c.ResolveTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ResolveTimeout) * time.Millisecond
}
