package services

import (
	"fmt"
	"sync"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/catalog"
	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/infrastructure/inference"
	"github.com/adjuface/facegate/internal/infrastructure/openai"
	"github.com/adjuface/facegate/internal/infrastructure/redis"
	"github.com/adjuface/facegate/internal/services/draw"
	"github.com/adjuface/facegate/internal/services/swap"
	"github.com/rs/zerolog/log"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	accountStore     account.Store
	catalogService   *catalog.Catalog
	drawService      *draw.Service
	inferenceService *inference.Service
	openAIService    *openai.Service
	redisService     *redis.Service
	swapService      *swap.Service
}

// InitializeServices initializes all required services
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Load the target catalog (required)
	catalogService, err := catalog.Load(config.GetCatalogPath())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load target catalog - required for face swaps")
		return nil, fmt.Errorf("failed to load target catalog: %w", err)
	}
	log.Info().Int("categories", len(catalogService.Categories())).Msg("Loaded target catalog")

	// Initialize Redis service (optional)
	redisService := redis.NewService()
	log.Info().Msg("Initializing Redis service")

	// Initialize account store with optional Redis
	quotaCfg := config.GetQuotaConfig()
	accountStore := account.NewStore(redisService, quotaCfg)
	log.Info().Msg("Initializing account store")

	// Initialize inference client (required)
	inferenceCfg := config.GetInferenceConfig()
	inferenceService := inference.NewService(inferenceCfg)
	log.Info().Str("url", inferenceCfg.URL).Msg("Initializing inference client")

	// Initialize swap orchestrator
	swapService := swap.NewService(accountStore, catalogService, inferenceService, inferenceCfg.MaxConcurrent)
	log.Info().Msg("Initializing swap service")

	// Initialize OpenAI service (optional, premium drawing)
	openAIService := openai.NewService()
	drawService := draw.NewService(openAIService)
	if drawService.Enabled() {
		log.Info().Msg("Initializing draw service")
	} else {
		log.Warn().Msg("Draw service disabled - no OpenAI key configured")
	}

	log.Info().Msg("All services initialized successfully")

	return &Services{
		accountStore:     accountStore,
		catalogService:   catalogService,
		drawService:      drawService,
		inferenceService: inferenceService,
		openAIService:    openAIService,
		redisService:     redisService,
		swapService:      swapService,
	}, nil
}

// GetAccountStore returns the account store
func (s *Services) GetAccountStore() account.Store {
	return s.accountStore
}

// GetCatalog returns the target catalog
func (s *Services) GetCatalog() *catalog.Catalog {
	return s.catalogService
}

// GetSwapService returns the swap orchestrator
func (s *Services) GetSwapService() *swap.Service {
	return s.swapService
}

// GetDrawService returns the draw service
func (s *Services) GetDrawService() *draw.Service {
	return s.drawService
}

// Close releases the store and any backing connections.
func (s *Services) Close() error {
	return s.accountStore.Close()
}
