package account

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adjuface/facegate/internal/config"
	"github.com/adjuface/facegate/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	accountKeyPrefix     = "facegate:account:"
	reservationKeyPrefix = "facegate:reservation:"
)

// RedisStore persists accounts as JSON values and reservations as SETNX keys.
// The TTL on the reservation key doubles as the force-release watchdog: a
// crashed worker's reservation simply expires.
type RedisStore struct {
	service *redis.Service
	cfg     config.QuotaConfig
}

func NewRedisStore(service *redis.Service, cfg config.QuotaConfig) *RedisStore {
	return &RedisStore{service: service, cfg: cfg}
}

func accountKey(userID string) string {
	return accountKeyPrefix + userID
}

func reservationKey(userID string) string {
	return reservationKeyPrefix + userID
}

func (s *RedisStore) load(ctx context.Context, userID string) (*Account, error) {
	data, err := s.service.Get(ctx, accountKey(userID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}

	var acct Account
	if err := json.Unmarshal([]byte(data), &acct); err != nil {
		return nil, fmt.Errorf("account: decode %s: %w", userID, err)
	}
	return &acct, nil
}

func (s *RedisStore) save(ctx context.Context, acct *Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	// Accounts persist for the lifetime of the deployment.
	return s.service.Set(ctx, accountKey(acct.UserID), string(data), 0)
}

func (s *RedisStore) GetOrCreate(ctx context.Context, userID string) (*Account, error) {
	acct, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return acct, nil
	}

	now := time.Now()
	acct = &Account{
		UserID:         userID,
		Tier:           TierFree,
		QuotaRemaining: s.cfg.FreeStarter,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.save(ctx, acct); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Int("quota", acct.QuotaRemaining).Msg("Account created")
	return acct, nil
}

func (s *RedisStore) CheckAndReserve(ctx context.Context, userID string) (*Reservation, error) {
	res := &Reservation{
		ID:       uuid.New().String(),
		UserID:   userID,
		IssuedAt: time.Now(),
	}

	// SETNX is the atomic per-user gate; the quota check happens while the
	// reservation is already held so a concurrent duplicate cannot slip past.
	ok, err := s.service.SetNX(ctx, reservationKey(userID), res.ID, s.cfg.ReservationTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRequestInProgress
	}

	acct, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		s.release(ctx, userID)
		return nil, err
	}
	if acct.QuotaRemaining <= 0 && !s.unlimited(acct) {
		s.release(ctx, userID)
		return nil, ErrQuotaExceeded
	}

	return res, nil
}

func (s *RedisStore) release(ctx context.Context, userID string) {
	if err := s.service.Delete(ctx, reservationKey(userID)); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to release reservation")
	}
}

func (s *RedisStore) Commit(ctx context.Context, res *Reservation, success bool) error {
	current, err := s.service.Get(ctx, reservationKey(res.UserID))
	if err != nil {
		if redis.IsNil(err) {
			return ErrReservationExpired
		}
		return err
	}
	if current != res.ID {
		// Force-released and re-reserved in the meantime; the new holder's
		// reservation must stay untouched.
		return ErrReservationExpired
	}

	if success {
		acct, err := s.GetOrCreate(ctx, res.UserID)
		if err != nil {
			return err
		}
		if !s.unlimited(acct) && acct.QuotaRemaining > 0 {
			acct.QuotaRemaining--
		}
		acct.UpdatedAt = time.Now()
		if err := s.save(ctx, acct); err != nil {
			return err
		}
	}

	s.release(ctx, res.UserID)
	return nil
}

func (s *RedisStore) unlimited(acct *Account) bool {
	return acct.IsPremium() && s.cfg.PremiumUnlimited
}

func (s *RedisStore) update(ctx context.Context, userID string, mutate func(*Account) error) error {
	acct, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if err := mutate(acct); err != nil {
		return err
	}
	acct.UpdatedAt = time.Now()
	return s.save(ctx, acct)
}

func (s *RedisStore) SetSelection(ctx context.Context, userID, category, mode string) error {
	return s.update(ctx, userID, func(acct *Account) error {
		acct.SelectedCategory = category
		acct.SelectedMode = mode
		return nil
	})
}

func (s *RedisStore) UpgradeToPremium(ctx context.Context, userID string, bonusQuota, bonusTargets int) error {
	return s.update(ctx, userID, func(acct *Account) error {
		acct.Tier = TierPremium
		acct.QuotaRemaining += bonusQuota
		acct.TargetSlots += bonusTargets
		log.Info().
			Str("user_id", userID).
			Int("quota", acct.QuotaRemaining).
			Int("target_slots", acct.TargetSlots).
			Msg("Account upgraded to premium")
		return nil
	})
}

func (s *RedisStore) SetCustomTarget(ctx context.Context, userID, path string) error {
	return s.update(ctx, userID, func(acct *Account) error {
		if !acct.IsPremium() {
			return ErrNotPremium
		}
		if acct.TargetSlots <= 0 {
			return ErrNoTargetSlots
		}
		acct.CustomTargetPath = path
		acct.TargetSlots--
		return nil
	})
}

func (s *RedisStore) ClearCustomTarget(ctx context.Context, userID string) error {
	return s.update(ctx, userID, func(acct *Account) error {
		acct.CustomTargetPath = ""
		return nil
	})
}

func (s *RedisStore) Reset(ctx context.Context, userID string, quota int) error {
	return s.update(ctx, userID, func(acct *Account) error {
		acct.Tier = TierFree
		acct.QuotaRemaining = quota
		acct.TargetSlots = 0
		acct.CustomTargetPath = ""
		log.Info().Str("user_id", userID).Int("quota", quota).Msg("Account reset")
		return nil
	})
}

func (s *RedisStore) All(ctx context.Context) ([]*Account, error) {
	keys, err := s.service.Scan(ctx, accountKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	out := make([]*Account, 0, len(keys))
	for _, key := range keys {
		acct, err := s.load(ctx, strings.TrimPrefix(key, accountKeyPrefix))
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("Skipping undecodable account")
			continue
		}
		if acct != nil {
			out = append(out, acct)
		}
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return nil
}
