package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

// GetJWTSecret returns the secret used to sign chat bearer tokens
func GetJWTSecret() []byte {
	value := GetEnvOrDefault("JWT_SECRET", "")
	if value == "" {
		log.Fatal().Msg("JWT_SECRET environment variable not set")
	}
	return []byte(value)
}

// GetAdapterSecret returns the shared secret the chat adapter presents when
// requesting bearer tokens
func GetAdapterSecret() string {
	value := GetEnvOrDefault("ADAPTER_SECRET", "")
	if value == "" {
		log.Fatal().Msg("ADAPTER_SECRET environment variable not set")
	}
	return value
}

// GetTokenLifetime returns how long issued bearer tokens stay valid
func GetTokenLifetime() time.Duration {
	return ParseEnvDuration("TOKEN_LIFETIME", 24*time.Hour)
}
