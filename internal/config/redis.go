package config

// GetRedisURL returns the Redis address, empty when Redis is not configured
func GetRedisURL() string {
	return GetEnvOrDefault("REDIS_URL", "")
}

// GetRedisPassword returns the Redis password, empty when unauthenticated
func GetRedisPassword() string {
	return GetEnvOrDefault("REDIS_PASSWORD", "")
}
