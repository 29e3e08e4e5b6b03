package sweeper

import (
	"auction-escrow/internal/auction"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// Sweeper closes open auctions whose end time has passed. It never moves money.
type Sweeper struct {
	repo repository.AuctionDB
	now  func() time.Time
}

// New creates a Sweeper over repo
func New(repo repository.AuctionDB) *Sweeper {
	return &Sweeper{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Sweep closes every expired open auction, one atomic unit per auction.
// It returns how many auctions this call closed; failures on individual
// auctions are collected and do not stop the rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.ListExpiredItemIDs(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	closed := 0
	var errs []error
	for _, id := range ids {
		changed, err := s.SweepItem(ctx, id, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			closed++
		}
	}
	return closed, errors.Join(errs...)
}

// SweepItem closes one auction if it has expired
func (s *Sweeper) SweepItem(ctx context.Context, itemID string, now time.Time) (bool, error) {
	var (
		closed  models.AuctionItem
		changed bool
	)
	err := s.repo.Atomic(ctx, repository.Scope{Auctions: []string{itemID}}, func(tx repository.Tx) error {
		var err error
		closed, changed, err = auction.CloseIfExpired(ctx, tx, itemID, now)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("sweep item %s: %w", itemID, err)
	}

	if changed {
		utils.Info("auction closed", map[string]any{
			"item_id":   closed.ItemID,
			"winner_id": closed.WinnerID,
			"price":     closed.CurrentPrice.String(),
			"reason":    closed.CloseReason,
		})
	}
	return changed, nil
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	utils.Info("expiry sweeper started", map[string]any{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			utils.Info("expiry sweeper stopped", nil)
			return
		case <-ticker.C:
			closed, err := s.Sweep(ctx, s.now())
			if err != nil {
				utils.Warn("expiry sweep failed", map[string]any{"error": err.Error(), "closed": closed})
				continue
			}
			if closed > 0 {
				utils.Info("expiry sweep finished", map[string]any{"closed": closed})
			}
		}
	}
}
