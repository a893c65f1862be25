package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Environment    string   `yaml:"environment"`
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		JwtSecretKey   string   `yaml:"jwt_secret_key"`
		LogLevel       string   `yaml:"log_level"`
	} `yaml:"server"`

	FeedSource struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"feed_source"`

	ReadState struct {
		Backend   string `yaml:"backend"`
		BadgerDir string `yaml:"badger_dir"`
	} `yaml:"read_state"`

	Database struct {
		Host           string `yaml:"host"`
		Port           string `yaml:"port"`
		User           string `yaml:"user"`
		Password       string `yaml:"password"`
		Name           string `yaml:"name"`
		MaxConnections int    `yaml:"max_connections"`
		SSLMode        string `yaml:"ssl_mode"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	WorkerPool struct {
		MaxWorkers             int `yaml:"max_workers"`
		QueueSize              int `yaml:"queue_size"`
		ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
	} `yaml:"worker_pool"`

	Refresh struct {
		Enabled         bool `yaml:"enabled"`
		IntervalSeconds int  `yaml:"interval_seconds"`
	} `yaml:"refresh"`
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func validateRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("ERROR: %s environment variable is not set in your .env file. Please set it and try again", key)
	}
	if len(value) < 8 {
		return "", fmt.Errorf("ERROR: %s value is too short. It must be at least 8 characters long. Current length: %d", key, len(value))
	}
	return value, nil
}

func main() {
	// Check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		fmt.Println("ERROR: .env file not found!")
		fmt.Println("Please create a .env file by copying .env.example and filling in the required values:")
		fmt.Println("cp .env.example .env")
		os.Exit(1)
	}

	config := Config{}

	// Server configuration
	config.Server.Environment = getEnvOrDefault("SERVER_ENVIRONMENT", "development")
	config.Server.Port = getEnvOrDefault("PORT", "8080")
	config.Server.AllowedOrigins = strings.Split(getEnvOrDefault("ALLOWED_ORIGINS", "*"), ",")
	config.Server.LogLevel = getEnvOrDefault("LOG_LEVEL", "debug")

	jwtKey, err := validateRequiredEnv("JWT_SECRET_KEY")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	config.Server.JwtSecretKey = jwtKey

	// Feed source configuration
	config.FeedSource.BaseURL = getEnvOrDefault("FEED_SOURCE_BASE_URL", "http://localhost:9090")
	feedKey, err := validateRequiredEnv("FEED_SOURCE_API_KEY")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	config.FeedSource.APIKey = feedKey
	config.FeedSource.TimeoutSeconds = 10

	// Read-state backend
	config.ReadState.Backend = getEnvOrDefault("READ_STATE_BACKEND", "memory")
	config.ReadState.BadgerDir = getEnvOrDefault("READ_STATE_BADGER_DIR", "./data/readstate")

	// Database configuration (only used when backend is postgres)
	config.Database.Host = getEnvOrDefault("DB_HOST", "postgres")
	config.Database.Port = getEnvOrDefault("DB_PORT", "5432")
	config.Database.User = getEnvOrDefault("DB_USER", "postgres")
	config.Database.Password = os.Getenv("DB_PASSWORD")
	config.Database.Name = getEnvOrDefault("DB_NAME", "shiftline_notify")
	config.Database.MaxConnections = 20
	config.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", "disable")

	// Redis configuration (only used when backend is redis)
	config.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", "redis:6379")
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.DB = 0

	// Background workers
	config.WorkerPool.MaxWorkers = 10
	config.WorkerPool.QueueSize = 1000
	config.WorkerPool.ShutdownTimeoutSeconds = 30
	config.Refresh.Enabled = true
	config.Refresh.IntervalSeconds = 60

	// Generate YAML
	yamlData, err := yaml.Marshal(&config)
	if err != nil {
		fmt.Printf("Error marshaling YAML: %v\n", err)
		os.Exit(1)
	}

	// Get the environment name from command line args or use default
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}

	// Create config directory if it doesn't exist
	err = os.MkdirAll("config", 0755)
	if err != nil {
		fmt.Printf("Error creating config directory: %v\n", err)
		os.Exit(1)
	}

	// Write to file
	filename := fmt.Sprintf("config/config.%s.yaml", env)
	err = os.WriteFile(filename, yamlData, 0644)
	if err != nil {
		fmt.Printf("Error writing config file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully generated %s\n", filename)
}
