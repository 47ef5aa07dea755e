package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/adjuface/facegate/internal/account"
	"github.com/adjuface/facegate/internal/catalog"
	"github.com/adjuface/facegate/internal/infrastructure/inference"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoCategorySelected = errors.New("swap: no category selected")
	ErrResultDiscarded    = errors.New("swap: caller gone, result discarded")
)

// Swapper is the capability boundary to the face-swap engine. The engine
// behind it is swappable without touching orchestration logic.
type Swapper interface {
	Swap(ctx context.Context, req inference.SwapRequest) ([]byte, error)
}

// Result is the outcome of one successful swap.
type Result struct {
	Image          []byte
	QuotaRemaining int
}

// Service drives one photo submission through its whole lifecycle: reserve
// the user's quota slot, resolve the target face, call the inference service
// and commit the charge. Exactly one commit follows every reservation, on
// every path.
type Service struct {
	accounts account.Store
	catalog  *catalog.Catalog
	swapper  Swapper

	// Bounds concurrent inference calls across all users.
	sem chan struct{}
}

func NewService(accounts account.Store, cat *catalog.Catalog, swapper Swapper, maxConcurrent int) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		accounts: accounts,
		catalog:  cat,
		swapper:  swapper,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// HandleImage processes one inbound photo for one user. The returned error is
// one of the account errors (quota exceeded, request in progress), the
// inference errors (no face, unavailable, timeout), ErrNoCategorySelected,
// ErrResultDiscarded, or a generic failure. The user is charged exactly when
// the swap succeeded.
func (s *Service) HandleImage(ctx context.Context, userID string, image []byte) (*Result, error) {
	requestID := uuid.New().String()[:8]
	logger := log.With().Str("request_id", requestID).Str("user_id", userID).Logger()

	if len(image) == 0 {
		return nil, fmt.Errorf("swap: empty image")
	}

	res, err := s.accounts.CheckAndReserve(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The reservation outlives the caller: once reserved, the request runs to
	// completion even if the chat transport gives up, so the account never
	// stays pending. Commits therefore use a detached context.
	detached := context.WithoutCancel(ctx)

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := s.accounts.Commit(detached, res, false); err != nil {
			logger.Error().Err(err).Msg("Failed to release reservation")
		}
	}()

	acct, err := s.accounts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("swap: load account: %w", err)
	}

	req, err := s.resolveTarget(acct)
	if err != nil {
		return nil, err
	}
	req.Image = image

	s.sem <- struct{}{}
	result, err := s.swapper.Swap(detached, req)
	<-s.sem

	if err != nil {
		logger.Warn().Err(err).Msg("Swap aborted, no charge")
		return nil, err
	}

	if err := s.accounts.Commit(detached, res, true); err != nil {
		// The reservation was force-released mid-flight; the watchdog already
		// gave the slot back, so deliver nothing and charge nothing.
		logger.Error().Err(err).Msg("Commit failed after successful swap")
		committed = true
		return nil, ErrResultDiscarded
	}
	committed = true

	updated, err := s.accounts.GetOrCreate(detached, userID)
	if err != nil {
		return nil, fmt.Errorf("swap: reload account: %w", err)
	}

	if ctx.Err() != nil {
		logger.Warn().Msg("Caller cancelled, discarding committed result")
		return nil, ErrResultDiscarded
	}

	logger.Info().Int("quota_remaining", updated.QuotaRemaining).Msg("Swap completed")
	return &Result{
		Image:          result,
		QuotaRemaining: updated.QuotaRemaining,
	}, nil
}

// resolveTarget picks the custom target for premium accounts that uploaded
// one, and a catalog target otherwise. A selection that no longer resolves
// against the loaded catalog is a data inconsistency, not user error.
func (s *Service) resolveTarget(acct *account.Account) (inference.SwapRequest, error) {
	if acct.IsPremium() && acct.CustomTargetPath != "" {
		return inference.SwapRequest{TargetPath: acct.CustomTargetPath}, nil
	}

	if acct.SelectedCategory == "" {
		return inference.SwapRequest{}, ErrNoCategorySelected
	}

	target, err := s.catalog.ResolveTarget(acct.SelectedCategory, acct.SelectedMode)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", acct.UserID).
			Str("category", acct.SelectedCategory).
			Str("mode", acct.SelectedMode).
			Msg("Stored selection no longer resolves against the catalog")
		return inference.SwapRequest{}, fmt.Errorf("swap: resolve target: %w", err)
	}

	return inference.SwapRequest{TargetPath: target.Filepath, Mode: target.Mode}, nil
}
