package bidding

import (
	"auction-escrow/internal/auction"
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/bids"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/internal/sweeper"
	"auction-escrow/internal/wallet"
	"auction-escrow/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxConflictRetries bounds how often a unit of work is retried after ErrConflict
const DefaultMaxConflictRetries = 3

// BiddingService coordinates wallets, bids and auction state. PlaceBid and
// WithdrawBid are the only writers of bid_placed and bid_refund ledger entries.
type BiddingService struct {
	repo           repository.AuctionDB
	sweeper        *sweeper.Sweeper
	withdrawWindow time.Duration
	maxRetries     int
	now            func() time.Time
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithWithdrawWindow sets how long a non-leading bid stays withdrawable
func WithWithdrawWindow(d time.Duration) Option {
	return func(s *BiddingService) {
		if d > 0 {
			s.withdrawWindow = d
		}
	}
}

// WithMaxConflictRetries sets the retry bound for ErrConflict
func WithMaxConflictRetries(n int) Option {
	return func(s *BiddingService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) {
		s.now = now
	}
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:           repo,
		sweeper:        sweeper.New(repo),
		withdrawWindow: bids.DefaultWithdrawWindow,
		maxRetries:     DefaultMaxConflictRetries,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// atomic runs fn as one unit of work, retrying with a fresh read on ErrConflict
func (s *BiddingService) atomic(ctx context.Context, scope repository.Scope, fn func(tx repository.Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err = s.repo.Atomic(ctx, scope, fn)
		if !errors.Is(err, biddingerrors.ErrConflict) {
			return err
		}
		utils.Warn("unit of work conflicted, retrying", map[string]any{
			"attempt":  attempt + 1,
			"wallets":  scope.Wallets,
			"auctions": scope.Auctions,
		})
	}
	return err
}

// sweepItem closes itemID if it has expired. Failures are logged, never returned.
func (s *BiddingService) sweepItem(ctx context.Context, itemID string) {
	if _, err := s.sweeper.SweepItem(ctx, itemID, s.now()); err != nil && !errors.Is(err, biddingerrors.ErrNotFound) {
		utils.Warn("opportunistic sweep failed", map[string]any{"item_id": itemID, "error": err.Error()})
	}
}

// PlaceBid debits the bidder, records the bid and raises the current price as one atomic unit
func (s *BiddingService) PlaceBid(ctx context.Context, itemID, userID string, amount decimal.Decimal) (models.PlaceBidResult, error) {
	if itemID == "" || userID == "" {
		return models.PlaceBidResult{}, fmt.Errorf("service: %w - missing itemID or userID", biddingerrors.ErrInvalidBid)
	}

	var result models.PlaceBidResult
	scope := repository.Scope{Wallets: []string{userID}, Auctions: []string{itemID}}
	err := s.atomic(ctx, scope, func(tx repository.Tx) error {
		now := s.now()

		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.IsOpen(now) {
			return fmt.Errorf("%w - status %s, ends %s", biddingerrors.ErrAuctionNotOpen, item.Status, item.EndTime.Format(time.RFC3339))
		}
		if userID == item.SellerID {
			return biddingerrors.ErrSelfBid
		}
		// amount is judged only once the auction is known to accept this bidder
		if err := wallet.ValidateAmount(amount); err != nil {
			return err
		}
		if !amount.GreaterThan(item.CurrentPrice) {
			return fmt.Errorf("%w - current price is %s", biddingerrors.ErrBidTooLow, item.CurrentPrice.StringFixed(wallet.MinorUnits))
		}

		entry, err := wallet.Debit(ctx, tx, wallet.Entry{
			AccountID:   userID,
			Amount:      amount,
			Kind:        models.KindBidPlaced,
			Description: fmt.Sprintf("Bid placed on %s", item.Title),
			Reference:   item.ItemID,
		}, now)
		if err != nil {
			return err
		}

		bid, err := bids.Place(ctx, tx, item, userID, amount, now)
		if err != nil {
			return err
		}

		item, err = auction.RecomputeCurrentPrice(ctx, tx, item)
		if err != nil {
			return err
		}

		result = models.PlaceBidResult{Bid: bid, CurrentPrice: item.CurrentPrice, Balance: entry.BalanceAfter}
		return nil
	})
	if err != nil {
		return models.PlaceBidResult{}, fmt.Errorf("service: failed to place bid on item %s by user %s: %w", itemID, userID, err)
	}

	utils.Info("bid placed", map[string]any{
		"bid_id":        result.Bid.BidID,
		"item_id":       itemID,
		"user_id":       userID,
		"amount":        amount.String(),
		"current_price": result.CurrentPrice.String(),
	})
	return result, nil
}

// WithdrawBid refunds and soft-deletes a bid while it is inside the withdraw window and not leading
func (s *BiddingService) WithdrawBid(ctx context.Context, bidID, userID string) (models.WithdrawBidResult, error) {
	if bidID == "" || userID == "" {
		return models.WithdrawBidResult{}, fmt.Errorf("service: %w - missing bidID or userID", biddingerrors.ErrInvalidBid)
	}

	// a bid's item and bidder never change, so they can be read before locking
	bid, err := s.repo.GetBid(ctx, bidID)
	if err != nil {
		return models.WithdrawBidResult{}, fmt.Errorf("service: failed to load bid %s: %w", bidID, err)
	}
	if bid.UserID != userID {
		return models.WithdrawBidResult{}, fmt.Errorf("service: %w - bid belongs to another bidder", biddingerrors.ErrNotWithdrawable)
	}

	var result models.WithdrawBidResult
	scope := repository.Scope{Wallets: []string{bid.UserID}, Auctions: []string{bid.ItemID}}
	err = s.atomic(ctx, scope, func(tx repository.Tx) error {
		now := s.now()

		item, err := tx.GetItem(ctx, bid.ItemID)
		if err != nil {
			return err
		}
		if !item.IsOpen(now) {
			return fmt.Errorf("%w - status %s", biddingerrors.ErrAuctionNotOpen, item.Status)
		}

		withdrawn, err := bids.Withdraw(ctx, tx, item, bidID, now, s.withdrawWindow)
		if err != nil {
			return err
		}

		entry, err := wallet.Credit(ctx, tx, wallet.Entry{
			AccountID:   withdrawn.UserID,
			Amount:      withdrawn.Amount,
			Kind:        models.KindBidRefund,
			Description: fmt.Sprintf("Bid withdrawn from %s", item.Title),
			Reference:   item.ItemID,
		}, now)
		if err != nil {
			return err
		}

		item, err = auction.RecomputeCurrentPrice(ctx, tx, item)
		if err != nil {
			return err
		}

		result = models.WithdrawBidResult{
			Bid:            withdrawn,
			RefundedAmount: withdrawn.Amount,
			CurrentPrice:   item.CurrentPrice,
			Balance:        entry.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return models.WithdrawBidResult{}, fmt.Errorf("service: failed to withdraw bid %s: %w", bidID, err)
	}

	utils.Info("bid withdrawn", map[string]any{
		"bid_id":        bidID,
		"item_id":       bid.ItemID,
		"user_id":       userID,
		"refunded":      result.RefundedAmount.String(),
		"current_price": result.CurrentPrice.String(),
	})
	return result, nil
}

// GetBidsForItem returns all bids for a specific item, withdrawn ones included
func (s *BiddingService) GetBidsForItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	all, err := s.repo.GetBidsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for item %s: %w", itemID, err)
	}

	return all, nil
}

// GetWinningBid returns the leading live bid for a specific item
func (s *BiddingService) GetWinningBid(ctx context.Context, itemID string) (models.Bid, error) {
	if itemID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	all, err := s.repo.GetBidsByItem(ctx, itemID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for item %s: %w", itemID, err)
	}

	leader, ok := bids.Leader(all)
	if !ok {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return leader, nil
}

// GetItemsByUser returns all items a user has placed bids on
func (s *BiddingService) GetItemsByUser(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	items, err := s.repo.GetItemsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get items for user %s: %w", userID, err)
	}

	return s.refreshExpired(ctx, items), nil
}

// GetItemsBySeller returns every auction a seller has listed
func (s *BiddingService) GetItemsBySeller(ctx context.Context, sellerID string) ([]models.AuctionItem, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("service: %w - empty seller ID", biddingerrors.ErrInvalidAuction)
	}

	items, err := s.repo.GetItemsBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get items for seller %s: %w", sellerID, err)
	}

	return s.refreshExpired(ctx, items), nil
}

// GetWonItems returns the closed auctions a user has won
func (s *BiddingService) GetWonItems(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	// a winner is only assigned on close, so settle the auctions the user bid on first
	bidOn, err := s.repo.GetItemsByUser(ctx, userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		return nil, fmt.Errorf("service: failed to get items for user %s: %w", userID, err)
	}
	s.refreshExpired(ctx, bidOn)

	items, err := s.repo.GetWonItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get won items for user %s: %w", userID, err)
	}
	return items, nil
}

// refreshExpired sweeps listed auctions that are still open but past their end time
// and returns the list with their post-sweep state
func (s *BiddingService) refreshExpired(ctx context.Context, items []models.AuctionItem) []models.AuctionItem {
	now := s.now()
	for i, item := range items {
		if !item.Status.IsOpenStatus() || item.IsOpen(now) {
			continue
		}
		s.sweepItem(ctx, item.ItemID)
		if fresh, err := s.repo.GetItem(ctx, item.ItemID); err == nil {
			items[i] = fresh
		}
	}
	return items
}
