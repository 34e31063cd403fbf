package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// JWTSecret reads the signing key on every call so tests can override it.
func JWTSecret() []byte {
	return []byte(GetEnv("JWT_SECRET", ""))
}
