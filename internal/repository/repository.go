package repository

import (
	"auction-escrow/internal/models"
	"context"
	"errors"
	"sort"
	"time"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// ErrOutOfScope is returned when a unit of work writes a wallet or auction it did not lock
var ErrOutOfScope = errors.New("repository: write outside locked scope")

// Scope names the wallets (by account id) and auctions (by item id) a unit of work locks.
// Locks are always taken wallets first, then auctions, each sorted by id.
type Scope struct {
	Wallets  []string
	Auctions []string
}

// Tx is the view of storage inside one atomic unit. Writes become visible to
// other callers only when the unit commits.
type Tx interface {
	GetItem(ctx context.Context, itemID string) (models.AuctionItem, error)
	InsertItem(ctx context.Context, item models.AuctionItem) error
	UpdateItem(ctx context.Context, item models.AuctionItem) error

	GetBid(ctx context.Context, bidID string) (models.Bid, error)
	// GetBidsByItem returns every bid of the item, withdrawn ones included, in placement order
	GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error)
	InsertBid(ctx context.Context, bid models.Bid) error
	UpdateBid(ctx context.Context, bid models.Bid) error

	// GetWallet returns the account's wallet, creating an empty one if absent
	GetWallet(ctx context.Context, accountID string) (models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet models.Wallet) error
	AppendTransaction(ctx context.Context, entry models.WalletTransaction) error

	InsertExtension(ctx context.Context, ext models.AuctionExtension) error

	IsPaymentApplied(ctx context.Context, reference string) (bool, error)
	RecordPayment(ctx context.Context, payment models.AppliedPayment) error
}

// AuctionDB defines the storage interface for the auction escrow engine
type AuctionDB interface {
	// Atomic runs fn as one all-or-nothing unit holding the locks named by scope.
	// Any error from fn, or a cancelled ctx, discards every write made through tx.
	Atomic(ctx context.Context, scope Scope, fn func(tx Tx) error) error

	GetItem(ctx context.Context, itemID string) (models.AuctionItem, error)
	ListOpenItems(ctx context.Context) ([]models.AuctionItem, error)
	ListExpiredItemIDs(ctx context.Context, now time.Time) ([]string, error)
	GetBid(ctx context.Context, bidID string) (models.Bid, error)
	GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error)
	GetItemsByUser(ctx context.Context, userID string) ([]models.AuctionItem, error)
	GetItemsBySeller(ctx context.Context, sellerID string) ([]models.AuctionItem, error)
	// GetWonItems returns closed items whose winner is userID
	GetWonItems(ctx context.Context, userID string) ([]models.AuctionItem, error)
	GetExtensions(ctx context.Context, itemID string) ([]models.AuctionExtension, error)
	GetTransactions(ctx context.Context, accountID string) ([]models.WalletTransaction, error)
}

// scopeSet is the membership view of a Scope used to guard writes
type scopeSet struct {
	wallets  map[string]struct{}
	auctions map[string]struct{}
}

func newScopeSet(s Scope) scopeSet {
	set := scopeSet{
		wallets:  make(map[string]struct{}, len(s.Wallets)),
		auctions: make(map[string]struct{}, len(s.Auctions)),
	}
	for _, id := range s.Wallets {
		set.wallets[id] = struct{}{}
	}
	for _, id := range s.Auctions {
		set.auctions[id] = struct{}{}
	}
	return set
}

func (s scopeSet) hasWallet(accountID string) bool {
	_, ok := s.wallets[accountID]
	return ok
}

func (s scopeSet) hasAuction(itemID string) bool {
	_, ok := s.auctions[itemID]
	return ok
}

// sortedUnique returns the distinct non-empty ids in ascending order
func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// lockKeys returns the global lock acquisition order for a scope
func (s Scope) lockKeys() []string {
	keys := make([]string, 0, len(s.Wallets)+len(s.Auctions))
	for _, id := range sortedUnique(s.Wallets) {
		keys = append(keys, "wallet:"+id)
	}
	for _, id := range sortedUnique(s.Auctions) {
		keys = append(keys, "auction:"+id)
	}
	return keys
}
