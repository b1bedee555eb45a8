package config

import (
	"os"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	MediaURL   string
	MediaToken string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "ripple"),
		DBPassword: getEnv("DB_PASSWORD", "ripple_dev_password"),
		DBName:     getEnv("DB_NAME", "ripple"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
		MediaURL:   getEnv("MEDIA_URL", "http://localhost:9000"),
		MediaToken: getEnv("MEDIA_TOKEN", ""),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}
