package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	JWTSecret      string             `json:"jwt_secret"`
	Port           int                `json:"port"`
	JWTTTLHours    int                `json:"jwt_ttl_hours"`
	CORSOrigins    []string           `json:"cors_origins"`
	LogConfig      logger.LogConfig   `json:"log_config"`
	Database       DatabaseConfig     `json:"database"`
	Redis          RedisConfig        `json:"redis"`
	TokenBlacklist BlacklistConfig    `json:"token_blacklist"`
	Mail           MailConfig         `json:"mail"`
	Verification   VerificationConfig `json:"verification"`
	Geocode        GeocodeConfig      `json:"geocode"`
	FileStore      FileStoreConfig    `json:"file_store"`
	Properties     Properties         `json:"properties"`
	// Minimum seconds between two send_code calls from one ip.
	SendCodeIntervalSeconds int `json:"send_code_interval_seconds"`
	MaxUploadMB             int `json:"max_upload_mb"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// BlacklistConfig selects where revoked token ids are kept: "memory" or "redis".
type BlacklistConfig struct {
	Type   string `json:"type"`
	Prefix string `json:"prefix"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type VerificationConfig struct {
	ExpireMinutes   int `json:"expire_minutes"`
	CooldownSeconds int `json:"cooldown_seconds"`
	MaxAttempts     int `json:"max_attempts"`
}

type GeocodeConfig struct {
	Providers       []GeocodeProviderConfig `json:"providers"`
	CacheSize       int                     `json:"cache_size"`
	CacheTTLSeconds int                     `json:"cache_ttl_seconds"`
	TimeoutSeconds  int                     `json:"timeout_seconds"`
}

type GeocodeProviderConfig struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Properties are feature flags handed to clients as-is.
type Properties struct {
	EnableUserRegister bool `json:"enable_user_register"`
	EnableGeocode      bool `json:"enable_geocode"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.SendCodeIntervalSeconds == 0 {
		cfg.SendCodeIntervalSeconds = 10
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 10
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	cfg.TokenBlacklist.Type = strings.ToLower(strings.TrimSpace(cfg.TokenBlacklist.Type))
	switch cfg.TokenBlacklist.Type {
	case "":
		cfg.TokenBlacklist.Type = "memory"
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis token blacklist")
		}
	default:
		return fmt.Errorf("token_blacklist.type must be memory or redis")
	}
	if cfg.TokenBlacklist.Prefix == "" {
		cfg.TokenBlacklist.Prefix = "estate:blacklist:"
	}
	if cfg.Verification.ExpireMinutes <= 0 {
		cfg.Verification.ExpireMinutes = 10
	}
	if cfg.Verification.CooldownSeconds <= 0 {
		cfg.Verification.CooldownSeconds = 60
	}
	if cfg.Verification.MaxAttempts <= 0 {
		cfg.Verification.MaxAttempts = 5
	}
	if cfg.Geocode.CacheSize == 0 {
		cfg.Geocode.CacheSize = 1024
	}
	if cfg.Geocode.CacheTTLSeconds == 0 {
		cfg.Geocode.CacheTTLSeconds = 24 * 3600
	}
	if cfg.Geocode.TimeoutSeconds <= 0 {
		cfg.Geocode.TimeoutSeconds = 10
	}
	for i, p := range cfg.Geocode.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("geocode.providers[%d].name is required", i)
		}
	}
	return nil
}
