package bids

import (
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/utils"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWithdrawWindow is how long after placement a non-leading bid may be withdrawn
const DefaultWithdrawWindow = 5 * time.Minute

// Leader returns the highest non-withdrawn bid. Equal amounts go to the earlier bid.
func Leader(bids []models.Bid) (models.Bid, bool) {
	var leader models.Bid
	found := false
	for _, b := range bids {
		if b.Withdrawn {
			continue
		}
		if !found || outranks(b, leader) {
			leader = b
			found = true
		}
	}
	return leader, found
}

func outranks(a, b models.Bid) bool {
	if !a.Amount.Equal(b.Amount) {
		return a.Amount.GreaterThan(b.Amount)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.BidID < b.BidID
}

// CountActive returns the number of non-withdrawn bids
func CountActive(bids []models.Bid) int {
	n := 0
	for _, b := range bids {
		if !b.Withdrawn {
			n++
		}
	}
	return n
}

// IsWithdrawable reports whether bid may be withdrawn at now: the auction is
// open, the bid is live and not leading, and now is strictly inside the window.
func IsWithdrawable(item models.AuctionItem, bid models.Bid, all []models.Bid, now time.Time, window time.Duration) bool {
	if !item.IsOpen(now) || bid.Withdrawn || bid.ItemID != item.ItemID {
		return false
	}
	if leader, ok := Leader(all); ok && leader.BidID == bid.BidID {
		return false
	}
	return now.Before(bid.CreatedAt.Add(window))
}

// Place appends a new live bid. Price and balance checks belong to the caller.
func Place(ctx context.Context, tx repository.Tx, item models.AuctionItem, bidderID string, amount decimal.Decimal, now time.Time) (models.Bid, error) {
	bid := models.Bid{
		BidID:     utils.GenerateID(),
		ItemID:    item.ItemID,
		UserID:    bidderID,
		Amount:    amount,
		CreatedAt: now,
	}

	if err := tx.InsertBid(ctx, bid); err != nil {
		return models.Bid{}, fmt.Errorf("place bid on item %s: %w", item.ItemID, err)
	}
	return bid, nil
}

// Withdraw soft-deletes a bid after re-checking eligibility against the bids visible in tx
func Withdraw(ctx context.Context, tx repository.Tx, item models.AuctionItem, bidID string, now time.Time, window time.Duration) (models.Bid, error) {
	all, err := tx.GetBidsByItem(ctx, item.ItemID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("withdraw bid %s: %w", bidID, err)
	}

	var bid models.Bid
	found := false
	for _, b := range all {
		if b.BidID == bidID {
			bid, found = b, true
			break
		}
	}
	if !found {
		return models.Bid{}, fmt.Errorf("withdraw bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}

	if !IsWithdrawable(item, bid, all, now, window) {
		return models.Bid{}, fmt.Errorf("withdraw bid %s: %w", bidID, biddingerrors.ErrNotWithdrawable)
	}

	withdrawnAt := now
	bid.Withdrawn = true
	bid.WithdrawnAt = &withdrawnAt
	if err := tx.UpdateBid(ctx, bid); err != nil {
		return models.Bid{}, fmt.Errorf("withdraw bid %s: %w", bidID, err)
	}
	return bid, nil
}
