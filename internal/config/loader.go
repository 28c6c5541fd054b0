package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/peachstate/voterlens/internal/db"
	"github.com/peachstate/voterlens/internal/domain"
)

// Config holds the full server configuration.
type Config struct {
	Database  db.Config
	Schema    string
	HTTPAddr  string
	CacheSize int
	CacheTTL  time.Duration
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		Database:  db.DefaultConfig(),
		Schema:    "voterdata",
		HTTPAddr:  ":8080",
		CacheSize: 512,
		CacheTTL:  5 * time.Minute,
	}
}

// Load reads config.yaml from configPath with VL_-prefixed environment
// overrides (VL_DATABASE_HOST, VL_SCHEMA, ...).
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("VL")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("schema")
	v.BindEnv("http_addr")
	v.BindEnv("cache.size")
	v.BindEnv("cache.ttl")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("schema") {
		cfg.Schema = v.GetString("schema")
	}
	if v.IsSet("http_addr") {
		cfg.HTTPAddr = v.GetString("http_addr")
	}
	if v.IsSet("cache.size") {
		cfg.CacheSize = v.GetInt("cache.size")
	}
	if v.IsSet("cache.ttl") {
		cfg.CacheTTL = v.GetDuration("cache.ttl")
	}

	if cfg.Schema == "" {
		return Config{}, domain.ErrConfiguration("schema name must not be empty")
	}

	return cfg, nil
}
