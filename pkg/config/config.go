package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverFirestore = "firestore"
	StorageDriverMemory    = "memory"

	PipelineModePermissive = "permissive"
	PipelineModeStrict     = "strict"
)

type Config struct {
	ServerPort      string `yaml:"server_port"`
	Environment     string `yaml:"environment"`
	FirebaseProject string `yaml:"firebase_project_id"`

	// Service account credentials: inline JSON wins over the file path.
	FirebaseCredentialsJSON string `yaml:"-"`
	FirebaseCredentialsPath string `yaml:"firebase_service_account_path"`

	StorageDriver string `yaml:"storage_driver"`

	Chat   ChatConfig  `yaml:"chat"`
	Orders OrderConfig `yaml:"orders"`
	Redis  RedisConfig `yaml:"redis"`
	Log    LogConfig   `yaml:"log"`
	Admin  AdminConfig `yaml:"admin"`
}

type ChatConfig struct {
	MessageRate  float64 `yaml:"message_rate"`  // messages per second per sender
	MessageBurst int     `yaml:"message_burst"` // burst allowance per sender
	SessionRate  float64 `yaml:"session_rate"`
	SessionBurst int     `yaml:"session_burst"`
}

type OrderConfig struct {
	PipelineMode string `yaml:"pipeline_mode"` // permissive|strict
}

type RedisConfig struct {
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AdminConfig struct {
	// Comma separated Firebase UIDs treated as admins even without a users/{uid} role.
	UIDs string `yaml:"uids"`
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		Environment:             getEnv("ENVIRONMENT", "development"),
		FirebaseProject:         getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseCredentialsPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StorageDriver:           getEnv("STORAGE_DRIVER", StorageDriverFirestore),
		Chat: ChatConfig{
			MessageRate:  getEnvAsFloat("CHAT_MESSAGE_RATE", 1),
			MessageBurst: getEnvAsInt("CHAT_MESSAGE_BURST", 10),
			SessionRate:  getEnvAsFloat("CHAT_SESSION_RATE", 0.2),
			SessionBurst: getEnvAsInt("CHAT_SESSION_BURST", 5),
		},
		Orders: OrderConfig{
			PipelineMode: getEnv("ORDER_PIPELINE_MODE", PipelineModePermissive),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
			TTL: getEnvAsDuration("PROFILE_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Admin: AdminConfig{
			UIDs: getEnv("ADMIN_UIDS", ""),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// overlay applies non-zero values from a YAML file on top of the env config.
func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverFirestore:
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore storage driver")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	switch c.Orders.PipelineMode {
	case PipelineModePermissive, PipelineModeStrict:
	default:
		return fmt.Errorf("unknown order pipeline mode %q", c.Orders.PipelineMode)
	}

	if c.Chat.MessageRate <= 0 || c.Chat.MessageBurst <= 0 {
		return fmt.Errorf("chat message rate and burst must be positive")
	}
	return nil
}

func (c *Config) StrictPipeline() bool {
	return c.Orders.PipelineMode == PipelineModeStrict
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		floatValue, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
