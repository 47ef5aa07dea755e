package draw

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	infra "github.com/adjuface/facegate/internal/infrastructure/openai"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

var ErrDisabled = errors.New("draw: feature not configured")

// Service turns a text prompt into an image for premium users. Draws are not
// charged against the swap quota.
type Service struct {
	openAI *infra.Service
}

func NewService(openAIService *infra.Service) *Service {
	return &Service{openAI: openAIService}
}

func (s *Service) Enabled() bool {
	return s.openAI != nil
}

func (s *Service) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if prompt == "" {
		return nil, fmt.Errorf("draw: empty prompt")
	}

	resp, err := s.openAI.GetClient().CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		log.Error().Err(err).Msg("Image generation failed")
		return nil, fmt.Errorf("draw: generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("draw: no image returned")
	}

	image, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("draw: decode image: %w", err)
	}
	return image, nil
}
