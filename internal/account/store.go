package account

import (
	"context"
	"errors"

	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/infrastructure/redis"
	"github.com/rs/zerolog/log"
)

var (
	ErrQuotaExceeded      = errors.New("account: quota exceeded")
	ErrRequestInProgress  = errors.New("account: request already in progress")
	ErrNotPremium         = errors.New("account: premium tier required")
	ErrNoTargetSlots      = errors.New("account: no target uploads left")
	ErrReservationExpired = errors.New("account: reservation expired")
)

// Store holds all mutable per-user state. Quota mutation goes through the
// reserve/commit pair: CheckAndReserve places the account in a pending state
// that blocks a second concurrent reservation for the same user, and Commit
// charges the quota only on success. Reservations that are never committed
// are force-released after the configured TTL.
type Store interface {
	GetOrCreate(ctx context.Context, userID string) (*Account, error)
	CheckAndReserve(ctx context.Context, userID string) (*Reservation, error)
	Commit(ctx context.Context, res *Reservation, success bool) error

	SetSelection(ctx context.Context, userID, category, mode string) error
	UpgradeToPremium(ctx context.Context, userID string, bonusQuota, bonusTargets int) error
	SetCustomTarget(ctx context.Context, userID, path string) error
	ClearCustomTarget(ctx context.Context, userID string) error

	Reset(ctx context.Context, userID string, quota int) error
	All(ctx context.Context) ([]*Account, error)

	Close() error
}

// NewStore picks the Redis backend when Redis is configured and reachable,
// falling back to the in-memory store otherwise.
func NewStore(redisService *redis.Service, cfg config.QuotaConfig) Store {
	if redisService != nil {
		if err := redisService.Ping(context.Background()); err == nil {
			log.Info().Msg("Using Redis account store")
			return NewRedisStore(redisService, cfg)
		}
		log.Warn().Msg("Redis unreachable - falling back to in-memory account store")
	}
	return NewMemoryStore(cfg)
}
