package repository

import (
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/models"
	"auction-escrow/utils"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu         sync.RWMutex
	items      map[string]models.AuctionItem          // key: itemID -> value: item
	bids       map[string]models.Bid                  // key: bidID -> value: bid
	itemBids   map[string][]string                    // key: itemID -> value: bidIDs in placement order
	userItems  map[string][]string                    // key: userID -> value: list of itemIDs user has bid on
	wallets    map[string]models.Wallet               // key: accountID -> value: wallet
	ledger     map[string][]models.WalletTransaction  // key: accountID -> value: entries in append order
	extensions map[string][]models.AuctionExtension   // key: itemID -> value: extensions
	payments   map[string]models.AppliedPayment       // key: external reference

	locks *keyLocks
	now   func() time.Time
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		items:      make(map[string]models.AuctionItem),
		bids:       make(map[string]models.Bid),
		itemBids:   make(map[string][]string),
		userItems:  make(map[string][]string),
		wallets:    make(map[string]models.Wallet),
		ledger:     make(map[string][]models.WalletTransaction),
		extensions: make(map[string][]models.AuctionExtension),
		payments:   make(map[string]models.AppliedPayment),
		locks:      newKeyLocks(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Atomic runs fn holding the scope's locks and publishes its writes only if fn succeeds
func (r *MemoryRepo) Atomic(ctx context.Context, scope Scope, fn func(tx Tx) error) error {
	release, err := r.locks.acquireAll(ctx, scope.lockKeys())
	if err != nil {
		return fmt.Errorf("acquire scope: %w", err)
	}
	defer release()

	tx := newMemTx(r, scope)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return r.commit(tx)
}

// commit applies a staged unit of work
func (r *MemoryRepo) commit(tx *memTx) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ref := range tx.payments {
		if _, ok := r.payments[ref]; ok {
			return fmt.Errorf("commit payment %s: %w", ref, biddingerrors.ErrConflict)
		}
	}

	for id, item := range tx.items {
		r.items[id] = item
	}
	for _, id := range tx.newBids {
		bid := tx.bids[id]
		r.itemBids[bid.ItemID] = append(r.itemBids[bid.ItemID], id)
		r.addUserItem(bid.UserID, bid.ItemID)
	}
	for id, bid := range tx.bids {
		r.bids[id] = bid
	}
	for accountID, wallet := range tx.wallets {
		r.wallets[accountID] = wallet
	}
	for _, entry := range tx.entries {
		r.ledger[entry.AccountID] = append(r.ledger[entry.AccountID], entry)
	}
	for _, ext := range tx.extensions {
		r.extensions[ext.ItemID] = append(r.extensions[ext.ItemID], ext)
	}
	for ref, p := range tx.payments {
		r.payments[ref] = p
	}
	return nil
}

func (r *MemoryRepo) addUserItem(userID, itemID string) {
	for _, id := range r.userItems[userID] {
		if id == itemID {
			return
		}
	}
	r.userItems[userID] = append(r.userItems[userID], itemID)
}

// GetItem returns a snapshot of an item
func (r *MemoryRepo) GetItem(ctx context.Context, itemID string) (models.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return models.AuctionItem{}, fmt.Errorf("get item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return item, nil
}

// ListOpenItems returns items with an open status, newest first
func (r *MemoryRepo) ListOpenItems(ctx context.Context) ([]models.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]models.AuctionItem, 0)
	for _, item := range r.items {
		if item.Status.IsOpenStatus() {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// ListExpiredItemIDs returns ids of open items whose end time is at or before now
func (r *MemoryRepo) ListExpiredItemIDs(ctx context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0)
	for id, item := range r.items {
		if item.Status.IsOpenStatus() && !item.EndTime.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetBid returns a snapshot of a bid
func (r *MemoryRepo) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bid, ok := r.bids[bidID]
	if !ok {
		return models.Bid{}, fmt.Errorf("get bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	return bid, nil
}

// GetBidsByItem returns all bids for an item in placement order
func (r *MemoryRepo) GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.items[itemID]; !ok {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}

	ids := r.itemBids[itemID]
	if len(ids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}

	bids := make([]models.Bid, 0, len(ids))
	for _, id := range ids {
		bids = append(bids, r.bids[id])
	}
	return bids, nil
}

// GetItemsByUser returns all items a user has bid on
func (r *MemoryRepo) GetItemsByUser(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	itemIDs, ok := r.userItems[userID]
	if !ok || len(itemIDs) == 0 {
		return nil, fmt.Errorf("get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	items := make([]models.AuctionItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		if item, exists := r.items[id]; exists {
			items = append(items, item)
		}
	}
	return items, nil
}

// GetItemsBySeller returns every item listed by sellerID, oldest first
func (r *MemoryRepo) GetItemsBySeller(ctx context.Context, sellerID string) ([]models.AuctionItem, error) {
	return r.filterItems(func(item models.AuctionItem) bool {
		return item.SellerID == sellerID
	}), nil
}

// GetWonItems returns closed items won by userID, oldest first
func (r *MemoryRepo) GetWonItems(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	return r.filterItems(func(item models.AuctionItem) bool {
		return item.Status == models.StatusClosed && item.WinnerID != "" && item.WinnerID == userID
	}), nil
}

func (r *MemoryRepo) filterItems(keep func(models.AuctionItem) bool) []models.AuctionItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]models.AuctionItem, 0)
	for _, item := range r.items {
		if keep(item) {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ItemID < items[j].ItemID
	})
	return items
}

// GetExtensions returns the extension audit trail of an item, oldest first
func (r *MemoryRepo) GetExtensions(ctx context.Context, itemID string) ([]models.AuctionExtension, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.items[itemID]; !ok {
		return nil, fmt.Errorf("get extensions for item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	return append([]models.AuctionExtension{}, r.extensions[itemID]...), nil
}

// GetTransactions returns an account's ledger, newest first
func (r *MemoryRepo) GetTransactions(ctx context.Context, accountID string) ([]models.WalletTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.wallets[accountID]; !ok {
		return nil, fmt.Errorf("get transactions for account %s: %w", accountID, biddingerrors.ErrWalletNotFound)
	}

	entries := r.ledger[accountID]
	out := make([]models.WalletTransaction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// AddItem adds an item to the repository. This method is intended for seeding and tests only.
func (r *MemoryRepo) AddItem(item models.AuctionItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ItemID] = item
}

// memTx stages writes of one unit of work on top of the committed state
type memTx struct {
	repo  *MemoryRepo
	scope scopeSet

	items      map[string]models.AuctionItem
	bids       map[string]models.Bid
	newBids    []string
	wallets    map[string]models.Wallet
	entries    []models.WalletTransaction
	extensions []models.AuctionExtension
	payments   map[string]models.AppliedPayment
}

func newMemTx(r *MemoryRepo, scope Scope) *memTx {
	return &memTx{
		repo:     r,
		scope:    newScopeSet(scope),
		items:    make(map[string]models.AuctionItem),
		bids:     make(map[string]models.Bid),
		wallets:  make(map[string]models.Wallet),
		payments: make(map[string]models.AppliedPayment),
	}
}

func (t *memTx) GetItem(ctx context.Context, itemID string) (models.AuctionItem, error) {
	if item, ok := t.items[itemID]; ok {
		return item, nil
	}
	return t.repo.GetItem(ctx, itemID)
}

func (t *memTx) InsertItem(ctx context.Context, item models.AuctionItem) error {
	if !t.scope.hasAuction(item.ItemID) {
		return fmt.Errorf("insert item %s: %w", item.ItemID, ErrOutOfScope)
	}
	if _, err := t.GetItem(ctx, item.ItemID); err == nil {
		return fmt.Errorf("insert item %s: %w", item.ItemID, biddingerrors.ErrConflict)
	}
	t.items[item.ItemID] = item
	return nil
}

func (t *memTx) UpdateItem(ctx context.Context, item models.AuctionItem) error {
	if !t.scope.hasAuction(item.ItemID) {
		return fmt.Errorf("update item %s: %w", item.ItemID, ErrOutOfScope)
	}
	if _, err := t.GetItem(ctx, item.ItemID); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	t.items[item.ItemID] = item
	return nil
}

func (t *memTx) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	if bid, ok := t.bids[bidID]; ok {
		return bid, nil
	}
	return t.repo.GetBid(ctx, bidID)
}

func (t *memTx) GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	t.repo.mu.RLock()
	ids := append([]string(nil), t.repo.itemBids[itemID]...)
	committed := make([]models.Bid, 0, len(ids))
	for _, id := range ids {
		committed = append(committed, t.repo.bids[id])
	}
	t.repo.mu.RUnlock()

	bids := make([]models.Bid, 0, len(committed)+len(t.newBids))
	for _, bid := range committed {
		if staged, ok := t.bids[bid.BidID]; ok {
			bid = staged
		}
		bids = append(bids, bid)
	}
	for _, id := range t.newBids {
		if bid := t.bids[id]; bid.ItemID == itemID {
			bids = append(bids, bid)
		}
	}
	return bids, nil
}

func (t *memTx) InsertBid(ctx context.Context, bid models.Bid) error {
	if !t.scope.hasAuction(bid.ItemID) {
		return fmt.Errorf("insert bid %s: %w", bid.BidID, ErrOutOfScope)
	}
	if _, err := t.GetBid(ctx, bid.BidID); err == nil {
		return fmt.Errorf("insert bid %s: %w", bid.BidID, biddingerrors.ErrConflict)
	}
	t.bids[bid.BidID] = bid
	t.newBids = append(t.newBids, bid.BidID)
	return nil
}

func (t *memTx) UpdateBid(ctx context.Context, bid models.Bid) error {
	if !t.scope.hasAuction(bid.ItemID) {
		return fmt.Errorf("update bid %s: %w", bid.BidID, ErrOutOfScope)
	}
	if _, err := t.GetBid(ctx, bid.BidID); err != nil {
		return fmt.Errorf("update bid: %w", err)
	}
	t.bids[bid.BidID] = bid
	return nil
}

func (t *memTx) GetWallet(ctx context.Context, accountID string) (models.Wallet, error) {
	if wallet, ok := t.wallets[accountID]; ok {
		return wallet, nil
	}

	t.repo.mu.RLock()
	wallet, ok := t.repo.wallets[accountID]
	t.repo.mu.RUnlock()
	if ok {
		return wallet, nil
	}

	if !t.scope.hasWallet(accountID) {
		return models.Wallet{}, fmt.Errorf("get wallet %s: %w", accountID, biddingerrors.ErrWalletNotFound)
	}

	now := t.repo.now()
	wallet = models.Wallet{
		ID:        utils.GenerateID(),
		AccountID: accountID,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.wallets[accountID] = wallet
	return wallet, nil
}

func (t *memTx) UpdateWallet(ctx context.Context, wallet models.Wallet) error {
	if !t.scope.hasWallet(wallet.AccountID) {
		return fmt.Errorf("update wallet %s: %w", wallet.AccountID, ErrOutOfScope)
	}
	t.wallets[wallet.AccountID] = wallet
	return nil
}

func (t *memTx) AppendTransaction(ctx context.Context, entry models.WalletTransaction) error {
	if !t.scope.hasWallet(entry.AccountID) {
		return fmt.Errorf("append transaction for %s: %w", entry.AccountID, ErrOutOfScope)
	}
	t.entries = append(t.entries, entry)
	return nil
}

func (t *memTx) InsertExtension(ctx context.Context, ext models.AuctionExtension) error {
	if !t.scope.hasAuction(ext.ItemID) {
		return fmt.Errorf("insert extension for %s: %w", ext.ItemID, ErrOutOfScope)
	}
	t.extensions = append(t.extensions, ext)
	return nil
}

func (t *memTx) IsPaymentApplied(ctx context.Context, reference string) (bool, error) {
	if _, ok := t.payments[reference]; ok {
		return true, nil
	}
	t.repo.mu.RLock()
	defer t.repo.mu.RUnlock()
	_, ok := t.repo.payments[reference]
	return ok, nil
}

func (t *memTx) RecordPayment(ctx context.Context, payment models.AppliedPayment) error {
	if !t.scope.hasWallet(payment.AccountID) {
		return fmt.Errorf("record payment %s: %w", payment.Reference, ErrOutOfScope)
	}
	if _, ok := t.payments[payment.Reference]; ok {
		return fmt.Errorf("record payment %s: %w", payment.Reference, biddingerrors.ErrConflict)
	}
	t.payments[payment.Reference] = payment
	return nil
}
