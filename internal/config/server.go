package config

// GetServerPort returns the port the HTTP server listens on
func GetServerPort() string {
	return GetEnvOrDefault("SERVER_PORT", "8080")
}
