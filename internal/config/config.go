package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Port          string `yaml:"port"`
	DatabaseURL   string `yaml:"database_url"`
	SessionSecret string `yaml:"session_secret"`
	LogLevel      string `yaml:"log_level"`
	SiteURL       string `yaml:"site_url"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	RabbitMQURL string `yaml:"rabbitmq_url"`
	RedisAddr   string `yaml:"redis_addr"`

	// TrustedProxies 为空时不信任任何 X-Forwarded-For
	TrustedProxies []string `yaml:"trusted_proxies"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Load reads an optional YAML file and then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:          "8080",
		DatabaseURL:   "host=localhost user=postgres password=postgres dbname=gulfquotes port=5432 sslmode=disable",
		SessionSecret: "secret_key_change_me",
		LogLevel:      "info",
		SiteURL:       "http://localhost:8080",
	}
	cfg.SMTP.Port = 587
	cfg.RateLimit.RPS = 5
	cfg.RateLimit.Burst = 20

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.SessionSecret = getEnvOrDefault("SESSION_SECRET", cfg.SessionSecret)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.SiteURL = strings.TrimSuffix(getEnvOrDefault("SITE_URL", cfg.SiteURL), "/")

	cfg.SMTP.Host = getEnvOrDefault("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Username = getEnvOrDefault("SMTP_USER", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnvOrDefault("SMTP_PASS", cfg.SMTP.Password)
	cfg.SMTP.From = getEnvOrDefault("SMTP_FROM", cfg.SMTP.From)
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SMTP_PORT must be a number: %w", err)
		}
		cfg.SMTP.Port = port
	}

	cfg.RabbitMQURL = getEnvOrDefault("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TrustedProxies = append(cfg.TrustedProxies, p)
			}
		}
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_RPS must be a number: %w", err)
		}
		cfg.RateLimit.RPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_BURST must be a number: %w", err)
		}
		cfg.RateLimit.Burst = burst
	}

	return cfg, nil
}

// SMTPEnabled reports whether every field needed to send mail is present.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.Port != 0 && c.SMTP.Username != "" &&
		c.SMTP.Password != "" && c.SMTP.From != ""
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
