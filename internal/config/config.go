package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	Routing  RoutingConfig
	Backend  BackendConfig
	Tracking TrackingConfig
	Kafka    KafkaConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string
	ReadTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration. Only used when the backend
// mode is "postgres".
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level string
}

// RoutingConfig holds the OSRM routing collaborator settings.
type RoutingConfig struct {
	BaseURL             string
	Timeout             time.Duration
	MaxAttempts         int
	CacheTTL            time.Duration
	SnapToleranceMeters float64
	FallbackSpeedKmh    float64
	RecordTimeout       time.Duration
}

// BackendConfig holds the ride backend collaborator settings.
type BackendConfig struct {
	// Mode is "http" (REST API) or "postgres" (direct database access).
	Mode    string
	BaseURL string
	Token   string
	Timeout time.Duration
}

// TrackingConfig holds the position simulator and session settings.
type TrackingConfig struct {
	TickInterval           time.Duration
	ArrivalThresholdMeters float64
	StepDegrees            float64 // > 0 switches the simulator to interpolated movement
	ArrivalTimeout         time.Duration
	SessionLockTTL         time.Duration
	SubscriberQueue        int
}

// KafkaConfig holds lifecycle event publishing settings. No brokers means
// events are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			ReadTimeout: getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ride_booking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ride-tracking-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Routing: RoutingConfig{
			BaseURL:             getEnv("OSRM_BASE_URL", "https://router.project-osrm.org"),
			Timeout:             getDurationEnv("OSRM_TIMEOUT", 5*time.Second),
			MaxAttempts:         getIntEnv("OSRM_MAX_ATTEMPTS", 2),
			CacheTTL:            getDurationEnv("ROUTE_CACHE_TTL", 10*time.Minute),
			SnapToleranceMeters: getFloatEnv("ROUTE_SNAP_TOLERANCE_METERS", 1000),
			FallbackSpeedKmh:    getFloatEnv("ROUTE_FALLBACK_SPEED_KMH", 40),
			RecordTimeout:       getDurationEnv("ROUTE_RECORD_TIMEOUT", 5*time.Second),
		},
		Backend: BackendConfig{
			Mode:    getEnv("BACKEND_MODE", "http"),
			BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8000/api"),
			Token:   getEnv("BACKEND_TOKEN", ""),
			Timeout: getDurationEnv("BACKEND_TIMEOUT", 10*time.Second),
		},
		Tracking: TrackingConfig{
			TickInterval:           getDurationEnv("TRACKING_TICK_INTERVAL", time.Second),
			ArrivalThresholdMeters: getFloatEnv("TRACKING_ARRIVAL_THRESHOLD_METERS", 100),
			StepDegrees:            getFloatEnv("TRACKING_STEP_DEGREES", 0),
			ArrivalTimeout:         getDurationEnv("TRACKING_ARRIVAL_TIMEOUT", 15*time.Second),
			SessionLockTTL:         getDurationEnv("TRACKING_SESSION_LOCK_TTL", 2*time.Hour),
			SubscriberQueue:        getIntEnv("TRACKING_SUBSCRIBER_QUEUE", 16),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "ride-tracking-events"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
