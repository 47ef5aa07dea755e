package config

import "time"

type InferenceConfig struct {
	URL           string
	Timeout       time.Duration
	RetryBackoff  time.Duration
	MaxConcurrent int
}

// GetInferenceConfig returns the settings for the external face-swap service.
// The URL is required; everything else has defaults sized for a single
// GPU-backed inference worker.
func GetInferenceConfig() InferenceConfig {
	return InferenceConfig{
		URL:           GetEnvOrDefault("INFERENCE_URL", "http://localhost:8000/swapper"),
		Timeout:       ParseEnvDuration("INFERENCE_TIMEOUT", 30*time.Second),
		RetryBackoff:  ParseEnvDuration("INFERENCE_RETRY_BACKOFF", 2*time.Second),
		MaxConcurrent: ParseEnvInt("INFERENCE_MAX_CONCURRENT", 4),
	}
}
