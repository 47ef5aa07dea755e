package config

// GetOpenAIKey returns the OpenAI API key. The draw feature is disabled when
// the key is unset, so unlike the other secrets this one is optional.
func GetOpenAIKey() string {
	return GetEnvOrDefault("OPENAI_KEY", "")
}
