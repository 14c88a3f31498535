package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr     string         `mapstructure:"addr"`
	Debug    bool           `mapstructure:"debug"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	WS       WSConfig       `mapstructure:"ws"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SecurityConfig struct {
	SecretKey      string        `mapstructure:"secret_key"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	AdminPassword  string        `mapstructure:"admin_password"`
}

type WSConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SetDefaults registers every known key, which also lets AutomaticEnv see them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")
	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "chatvideo.db")

	v.SetDefault("security.secret_key", "change-me")
	v.SetDefault("security.access_token_ttl", 30*time.Minute)
	v.SetDefault("security.admin_password", "admin123")

	v.SetDefault("ws.ping_interval", 25*time.Second)
	v.SetDefault("ws.pong_timeout", 60*time.Second)
	v.SetDefault("ws.write_timeout", 10*time.Second)
	v.SetDefault("ws.max_message_size", 64*1024)
	v.SetDefault("ws.allowed_origins", []string{})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "chatvideo")
	v.SetDefault("redis.ttl", 2*time.Minute)
}

// Load reads settings.toml from the given paths (default "." and "..") and
// applies CHATVIDEO_* environment overrides. A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if len(paths) == 0 {
		paths = []string{".", ".."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("settings")
	v.SetConfigType("toml")

	v.SetEnvPrefix("CHATVIDEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Security.SecretKey == "" {
		return errors.New("security.secret_key must be set")
	}
	if c.WS.PingInterval <= 0 || c.WS.PingInterval >= c.WS.PongTimeout {
		return fmt.Errorf("ws.ping_interval (%s) must be positive and shorter than ws.pong_timeout (%s)", c.WS.PingInterval, c.WS.PongTimeout)
	}
	if c.WS.WriteTimeout <= 0 {
		return fmt.Errorf("ws.write_timeout (%s) must be positive", c.WS.WriteTimeout)
	}
	return nil
}
