package bidding

import (
	"auction-escrow/internal/auction"
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/bids"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// CreateAuction opens a new auction for sellerID
func (s *BiddingService) CreateAuction(ctx context.Context, sellerID string, draft models.AuctionDraft) (models.AuctionItem, error) {
	item, err := auction.New(sellerID, draft, s.now())
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: %w", err)
	}

	err = s.atomic(ctx, repository.Scope{Auctions: []string{item.ItemID}}, func(tx repository.Tx) error {
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: failed to create auction for seller %s: %w", sellerID, err)
	}

	utils.Info("auction created", map[string]any{
		"item_id":        item.ItemID,
		"seller_id":      sellerID,
		"starting_price": item.StartingPrice.String(),
		"end_time":       item.EndTime,
	})
	return item, nil
}

// ExtendAuction moves the end time of the seller's auction out by hours.
// An auction whose end time already passed cannot be revived by an extension.
func (s *BiddingService) ExtendAuction(ctx context.Context, itemID, userID string, hours int, reason string) (models.AuctionItem, error) {
	if itemID == "" || userID == "" {
		return models.AuctionItem{}, fmt.Errorf("service: %w - missing itemID or userID", biddingerrors.ErrInvalidAuction)
	}

	var extended models.AuctionItem
	err := s.atomic(ctx, repository.Scope{Auctions: []string{itemID}}, func(tx repository.Tx) error {
		now := s.now()

		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status.IsOpenStatus() && !item.IsOpen(now) {
			return fmt.Errorf("%w - auction ended at %s", biddingerrors.ErrNotExtendable, item.EndTime.Format(time.RFC3339))
		}

		extended, err = auction.Extend(ctx, tx, item, userID, hours, reason, now)
		return err
	})
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: failed to extend auction %s: %w", itemID, err)
	}

	utils.Info("auction extended", map[string]any{
		"item_id":         itemID,
		"new_end_time":    extended.EndTime,
		"time_extensions": extended.TimeExtensions,
	})
	return extended, nil
}

// CloseAuctionEarly lets the seller end an auction now. Closing a closed auction is a no-op.
func (s *BiddingService) CloseAuctionEarly(ctx context.Context, itemID, userID string) (models.AuctionItem, error) {
	if itemID == "" || userID == "" {
		return models.AuctionItem{}, fmt.Errorf("service: %w - missing itemID or userID", biddingerrors.ErrInvalidAuction)
	}

	var (
		closed  models.AuctionItem
		changed bool
	)
	err := s.atomic(ctx, repository.Scope{Auctions: []string{itemID}}, func(tx repository.Tx) error {
		now := s.now()

		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.SellerID != userID {
			return biddingerrors.ErrNotSeller
		}

		reason := models.CloseReasonEndedEarly
		if !item.EndTime.After(now) {
			reason = models.CloseReasonExpired
		}
		closed, changed, err = auction.Close(ctx, tx, itemID, reason, now)
		return err
	})
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("service: failed to close auction %s: %w", itemID, err)
	}

	if changed {
		utils.Info("auction closed", map[string]any{
			"item_id":   itemID,
			"winner_id": closed.WinnerID,
			"price":     closed.CurrentPrice.String(),
			"reason":    closed.CloseReason,
		})
	}
	return closed, nil
}

// GetAuctionStatus sweeps the auction and then reports its state
func (s *BiddingService) GetAuctionStatus(ctx context.Context, itemID string) (models.AuctionStatusView, error) {
	if itemID == "" {
		return models.AuctionStatusView{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidAuction)
	}

	s.sweepItem(ctx, itemID)

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return models.AuctionStatusView{}, fmt.Errorf("service: failed to get auction %s: %w", itemID, err)
	}

	all, err := s.repo.GetBidsByItem(ctx, itemID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		return models.AuctionStatusView{}, fmt.Errorf("service: failed to get bids for auction %s: %w", itemID, err)
	}

	return models.AuctionStatusView{
		Item:          item,
		TimeRemaining: auction.TimeRemaining(item, s.now()),
		BidCount:      bids.CountActive(all),
	}, nil
}

// ListOpenAuctions sweeps expired auctions and returns the ones still open, newest first
func (s *BiddingService) ListOpenAuctions(ctx context.Context) ([]models.AuctionItem, error) {
	if _, err := s.sweeper.Sweep(ctx, s.now()); err != nil {
		utils.Warn("opportunistic sweep failed", map[string]any{"error": err.Error()})
	}

	items, err := s.repo.ListOpenItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list open auctions: %w", err)
	}

	now := s.now()
	open := make([]models.AuctionItem, 0, len(items))
	for _, item := range items {
		if item.IsOpen(now) {
			open = append(open, item)
		}
	}
	return open, nil
}

// GetExtensions returns the extension history of an auction
func (s *BiddingService) GetExtensions(ctx context.Context, itemID string) ([]models.AuctionExtension, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidAuction)
	}

	exts, err := s.repo.GetExtensions(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get extensions for auction %s: %w", itemID, err)
	}
	return exts, nil
}
