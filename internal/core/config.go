package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = 5000
	defaultConnectionString = "app.db"
	// Matches the documented development default; override via SECRET_KEY in
	// any real deployment.
	defaultSecretKey              = "dev-secret-change-me"
	defaultSessionValidityMinutes = 1440
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Auth struct {
	SecretKey              string `yaml:"secretKey"`
	SessionValidityMinutes int    `yaml:"sessionValidityMinutes"`
}

type Session struct {
	Store        string `yaml:"store"` // "cookie" (default) or "redis"
	RedisAddress string `yaml:"redisAddress"`
}

// Model configures the generative backend. An empty API key selects the
// stub transformer.
type Model struct {
	APIKey  string `yaml:"apiKey"`
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseURL"`
}

type ServiceConfig struct {
	Port     int      `yaml:"port"`
	Database Database `yaml:"database"`
	Auth     Auth     `yaml:"auth"`
	Session  Session  `yaml:"session"`
	Model    Model    `yaml:"model"`
}

// LoadConfig loads configuration from the specified YAML file. A missing
// file is not an error; defaults and environment overrides still apply.
func LoadConfig(configPath string) (*ServiceConfig, error) {
	var config ServiceConfig

	data, err := os.ReadFile(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func applyEnvOverrides(config *ServiceConfig) {
	if port := os.Getenv("PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			config.Port = parsed
		}
	}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		config.Auth.SecretKey = secret
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Model.APIKey = apiKey
	}
	if modelName := os.Getenv("GEMINI_MODEL_NAME"); modelName != "" {
		config.Model.Name = modelName
	}
	if address := os.Getenv("REDIS_ADDRESS"); address != "" {
		config.Session.Store = "redis"
		config.Session.RedisAddress = address
	}
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.ConnectionString == "" {
		config.Database.ConnectionString = defaultConnectionString
	}
	if config.Auth.SecretKey == "" {
		config.Auth.SecretKey = defaultSecretKey
	}
	if config.Auth.SessionValidityMinutes == 0 {
		config.Auth.SessionValidityMinutes = defaultSessionValidityMinutes
	}
}

func validateConfig(config *ServiceConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port %d out of range", config.Port)
	}
	if config.Session.Store == "redis" && config.Session.RedisAddress == "" {
		return fmt.Errorf("session store 'redis' requires a redis address")
	}
	return nil
}
