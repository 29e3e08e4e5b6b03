package auction

import (
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/bids"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/internal/wallet"
	"auction-escrow/utils"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Extension limits
const (
	MaxExtensions     = 3
	MinExtensionHours = 1
	MaxExtensionHours = 72
)

// New builds an open auction from a seller's draft
func New(sellerID string, draft models.AuctionDraft, now time.Time) (models.AuctionItem, error) {
	if sellerID == "" || strings.TrimSpace(draft.Title) == "" {
		return models.AuctionItem{}, fmt.Errorf("%w - missing seller or title", biddingerrors.ErrInvalidAuction)
	}
	if err := wallet.ValidateAmount(draft.StartingPrice); err != nil {
		return models.AuctionItem{}, fmt.Errorf("starting price: %w", err)
	}
	if !draft.EndTime.After(now) {
		return models.AuctionItem{}, fmt.Errorf("%w - end time must be in the future", biddingerrors.ErrInvalidAuction)
	}

	end := draft.EndTime.UTC()
	return models.AuctionItem{
		ItemID:          utils.GenerateID(),
		SellerID:        sellerID,
		Title:           strings.TrimSpace(draft.Title),
		Description:     draft.Description,
		StartingPrice:   draft.StartingPrice,
		CurrentPrice:    draft.StartingPrice,
		CreatedAt:       now,
		EndTime:         end,
		OriginalEndTime: end,
		Status:          models.StatusActive,
	}, nil
}

// CanExtend reports whether the auction has an open status and extensions left
func CanExtend(item models.AuctionItem) bool {
	return item.Status.IsOpenStatus() && item.TimeExtensions < MaxExtensions
}

// TimeRemaining is zero once the end time has passed or the auction is closed
func TimeRemaining(item models.AuctionItem, now time.Time) time.Duration {
	if item.Status == models.StatusClosed || !item.EndTime.After(now) {
		return 0
	}
	return item.EndTime.Sub(now)
}

// Extend pushes the end time out by hours and records the extension
func Extend(ctx context.Context, tx repository.Tx, item models.AuctionItem, by string, hours int, reason string, now time.Time) (models.AuctionItem, error) {
	if by != item.SellerID {
		return models.AuctionItem{}, fmt.Errorf("extend item %s: %w - requested by non-seller", item.ItemID, biddingerrors.ErrNotExtendable)
	}
	if !CanExtend(item) {
		return models.AuctionItem{}, fmt.Errorf("extend item %s: %w - status %s, %d extensions used",
			item.ItemID, biddingerrors.ErrNotExtendable, item.Status, item.TimeExtensions)
	}
	if hours < MinExtensionHours || hours > MaxExtensionHours {
		return models.AuctionItem{}, fmt.Errorf("extend item %s: %w - hours must be between %d and %d",
			item.ItemID, biddingerrors.ErrInvalidExtension, MinExtensionHours, MaxExtensionHours)
	}

	ext := models.AuctionExtension{
		ExtensionID: utils.GenerateID(),
		ItemID:      item.ItemID,
		ExtendedBy:  by,
		OldEndTime:  item.EndTime,
		NewEndTime:  item.EndTime.Add(time.Duration(hours) * time.Hour),
		Reason:      reason,
		CreatedAt:   now,
	}

	item.EndTime = ext.NewEndTime
	item.TimeExtensions++
	item.Status = models.StatusExtended

	if err := tx.UpdateItem(ctx, item); err != nil {
		return models.AuctionItem{}, fmt.Errorf("extend item %s: %w", item.ItemID, err)
	}
	if err := tx.InsertExtension(ctx, ext); err != nil {
		return models.AuctionItem{}, fmt.Errorf("extend item %s: %w", item.ItemID, err)
	}
	return item, nil
}

// RecomputeCurrentPrice sets the current price to the leading live bid, or the starting price
func RecomputeCurrentPrice(ctx context.Context, tx repository.Tx, item models.AuctionItem) (models.AuctionItem, error) {
	all, err := tx.GetBidsByItem(ctx, item.ItemID)
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("recompute price of item %s: %w", item.ItemID, err)
	}

	item.CurrentPrice = priceFor(item, all)
	if err := tx.UpdateItem(ctx, item); err != nil {
		return models.AuctionItem{}, fmt.Errorf("recompute price of item %s: %w", item.ItemID, err)
	}
	return item, nil
}

func priceFor(item models.AuctionItem, all []models.Bid) decimal.Decimal {
	if leader, ok := bids.Leader(all); ok {
		return leader.Amount
	}
	return item.StartingPrice
}

// Close moves an open auction to closed and assigns the leading bidder as winner.
// Closing an already closed auction changes nothing and reports changed=false.
func Close(ctx context.Context, tx repository.Tx, itemID, reason string, now time.Time) (item models.AuctionItem, changed bool, err error) {
	item, err = tx.GetItem(ctx, itemID)
	if err != nil {
		return models.AuctionItem{}, false, fmt.Errorf("close item %s: %w", itemID, err)
	}
	if item.Status == models.StatusClosed {
		return item, false, nil
	}

	all, err := tx.GetBidsByItem(ctx, itemID)
	if err != nil {
		return models.AuctionItem{}, false, fmt.Errorf("close item %s: %w", itemID, err)
	}

	if leader, ok := bids.Leader(all); ok {
		item.WinnerID = leader.UserID
	}
	closedAt := now
	item.CurrentPrice = priceFor(item, all)
	item.Status = models.StatusClosed
	item.ClosedAt = &closedAt
	item.CloseReason = reason

	if err := tx.UpdateItem(ctx, item); err != nil {
		return models.AuctionItem{}, false, fmt.Errorf("close item %s: %w", itemID, err)
	}
	return item, true, nil
}

// CloseIfExpired closes the auction only when it is open and its end time is at or before now
func CloseIfExpired(ctx context.Context, tx repository.Tx, itemID string, now time.Time) (models.AuctionItem, bool, error) {
	item, err := tx.GetItem(ctx, itemID)
	if err != nil {
		return models.AuctionItem{}, false, fmt.Errorf("close expired item %s: %w", itemID, err)
	}
	if !item.Status.IsOpenStatus() || item.EndTime.After(now) {
		return item, false, nil
	}
	return Close(ctx, tx, itemID, models.CloseReasonExpired, now)
}
