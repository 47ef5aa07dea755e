package openai

import (
	"sync"

	"github.com/adjuface/facegate/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Service wraps the OpenAI client backing the premium draw feature. A nil
// Service means the feature is disabled.
type Service struct {
	mu     sync.RWMutex
	client *openai.Client
}

func NewService() *Service {
	key := config.GetOpenAIKey()

	if key == "" {
		log.Warn().Msg("OpenAI key not configured - draw feature disabled")
		return nil
	}

	return &Service{
		client: openai.NewClient(key),
	}
}

func (s *Service) GetClient() *openai.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}
