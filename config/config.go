package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the disaster coordination service
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Server configuration
	Host string
	Port string

	// Geocoding providers. A missing credential simply removes the
	// provider from the rotation, it is not a startup failure.
	NominatimBaseURL string
	NominatimEmail   string
	LocationIQKey    string
	MapTilerKey      string
	GeocodeTimeout   time.Duration
	ProviderRetryMax int

	// OpenAI configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Social media search
	SocialSearchURL   string
	SocialSearchToken string
	SocialCacheTTL    time.Duration

	// Cache
	CacheDefaultTTL time.Duration

	// Proximity radius bounds in meters
	DefaultRadiusMeters int

	// Auth
	JWTSecret string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret"),
		DBName:     getEnv("DB_NAME", "disaster_coordination"),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8080"),

		NominatimBaseURL: getEnv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimEmail:   getEnv("NOMINATIM_EMAIL", ""),
		LocationIQKey:    getEnv("LOCATIONIQ_KEY", ""),
		MapTilerKey:      getEnv("MAPTILER_KEY", ""),
		GeocodeTimeout:   getDurationEnv("GEOCODE_TIMEOUT", 10*time.Second),
		ProviderRetryMax: getIntEnv("PROVIDER_RETRY_MAX", 2),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		SocialSearchURL:   getEnv("SOCIAL_SEARCH_URL", ""),
		SocialSearchToken: getEnv("SOCIAL_SEARCH_TOKEN", ""),
		SocialCacheTTL:    getDurationEnv("SOCIAL_CACHE_TTL", 15*time.Minute),

		CacheDefaultTTL: getDurationEnv("CACHE_DEFAULT_TTL", time.Hour),

		DefaultRadiusMeters: getIntEnv("DEFAULT_RADIUS_METERS", 10000),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
