package account

import (
	"context"
	"sync"
	"time"

	"github.com/adjuface/facegate/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type pendingReservation struct {
	id       string
	deadline time.Time
}

// MemoryStore keeps accounts in a map guarded by one mutex. A background
// sweeper force-releases reservations whose TTL elapsed without a commit, so
// a crashed worker cannot leave an account pending forever.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	pending  map[string]pendingReservation
	cfg      config.QuotaConfig

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore(cfg config.QuotaConfig) *MemoryStore {
	s := &MemoryStore{
		accounts: make(map[string]*Account),
		pending:  make(map[string]pendingReservation),
		cfg:      cfg,
		stop:     make(chan struct{}),
	}

	interval := cfg.ReservationTTL / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	go s.watchdog(interval)

	return s
}

func (s *MemoryStore) watchdog(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepExpired(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweepExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, res := range s.pending {
		if now.After(res.deadline) {
			delete(s.pending, userID)
			log.Warn().
				Str("user_id", userID).
				Str("reservation_id", res.id).
				Msg("Reservation force-released after TTL")
		}
	}
}

func (s *MemoryStore) getOrCreateLocked(userID string) *Account {
	if acct, ok := s.accounts[userID]; ok {
		return acct
	}

	now := time.Now()
	acct := &Account{
		UserID:         userID,
		Tier:           TierFree,
		QuotaRemaining: s.cfg.FreeStarter,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.accounts[userID] = acct

	log.Info().Str("user_id", userID).Int("quota", acct.QuotaRemaining).Msg("Account created")
	return acct
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := *s.getOrCreateLocked(userID)
	return &acct, nil
}

func (s *MemoryStore) CheckAndReserve(ctx context.Context, userID string) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if res, ok := s.pending[userID]; ok {
		if now.Before(res.deadline) {
			return nil, ErrRequestInProgress
		}
		// The watchdog has not come around yet; release it now.
		delete(s.pending, userID)
		log.Warn().Str("user_id", userID).Msg("Reservation force-released after TTL")
	}

	acct := s.getOrCreateLocked(userID)
	if acct.QuotaRemaining <= 0 && !s.unlimited(acct) {
		return nil, ErrQuotaExceeded
	}

	res := &Reservation{
		ID:       uuid.New().String(),
		UserID:   userID,
		IssuedAt: now,
	}
	s.pending[userID] = pendingReservation{id: res.ID, deadline: now.Add(s.cfg.ReservationTTL)}

	return res, nil
}

func (s *MemoryStore) Commit(ctx context.Context, res *Reservation, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[res.UserID]
	if !ok || pending.id != res.ID {
		return ErrReservationExpired
	}
	delete(s.pending, res.UserID)

	if !success {
		return nil
	}

	acct := s.getOrCreateLocked(res.UserID)
	if !s.unlimited(acct) && acct.QuotaRemaining > 0 {
		acct.QuotaRemaining--
	}
	acct.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) unlimited(acct *Account) bool {
	return acct.IsPremium() && s.cfg.PremiumUnlimited
}

func (s *MemoryStore) SetSelection(ctx context.Context, userID, category, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreateLocked(userID)
	acct.SelectedCategory = category
	acct.SelectedMode = mode
	acct.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpgradeToPremium(ctx context.Context, userID string, bonusQuota, bonusTargets int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreateLocked(userID)
	acct.Tier = TierPremium
	acct.QuotaRemaining += bonusQuota
	acct.TargetSlots += bonusTargets
	acct.UpdatedAt = time.Now()

	log.Info().
		Str("user_id", userID).
		Int("quota", acct.QuotaRemaining).
		Int("target_slots", acct.TargetSlots).
		Msg("Account upgraded to premium")
	return nil
}

func (s *MemoryStore) SetCustomTarget(ctx context.Context, userID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreateLocked(userID)
	if !acct.IsPremium() {
		return ErrNotPremium
	}
	if acct.TargetSlots <= 0 {
		return ErrNoTargetSlots
	}

	acct.CustomTargetPath = path
	acct.TargetSlots--
	acct.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ClearCustomTarget(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreateLocked(userID)
	acct.CustomTargetPath = ""
	acct.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, userID string, quota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.getOrCreateLocked(userID)
	acct.Tier = TierFree
	acct.QuotaRemaining = quota
	acct.TargetSlots = 0
	acct.CustomTargetPath = ""
	acct.UpdatedAt = time.Now()

	log.Info().Str("user_id", userID).Int("quota", quota).Msg("Account reset")
	return nil
}

func (s *MemoryStore) All(ctx context.Context) ([]*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		copied := *acct
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}
