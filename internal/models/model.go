package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction item
type AuctionStatus string

const (
	StatusPending  AuctionStatus = "pending"
	StatusActive   AuctionStatus = "active"
	StatusExtended AuctionStatus = "extended"
	StatusClosed   AuctionStatus = "closed"
)

// IsOpenStatus reports whether the status still accepts bids
func (s AuctionStatus) IsOpenStatus() bool {
	return s == StatusActive || s == StatusExtended
}

// Close reasons recorded on an item when it is closed
const (
	CloseReasonExpired    = "expired"
	CloseReasonEndedEarly = "ended_early"
)

// TransactionKind classifies a wallet ledger entry
type TransactionKind string

const (
	KindDeposit     TransactionKind = "deposit"
	KindWithdrawal  TransactionKind = "withdrawal"
	KindBidPlaced   TransactionKind = "bid_placed"
	KindBidRefund   TransactionKind = "bid_refund"
	KindAuctionWon  TransactionKind = "auction_won"
	KindAuctionSold TransactionKind = "auction_sold"
)

// Wallet holds the prepaid balance of one account
type Wallet struct {
	ID        string          `json:"wallet_id"`
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WalletTransaction is an immutable ledger entry. BalanceAfter is the wallet
// balance immediately after this entry was applied.
type WalletTransaction struct {
	ID           string          `json:"transaction_id"`
	WalletID     string          `json:"wallet_id"`
	AccountID    string          `json:"account_id"`
	Kind         TransactionKind `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Description  string          `json:"description"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AuctionItem represents an auction item
type AuctionItem struct {
	ItemID          string          `json:"item_id"`
	SellerID        string          `json:"seller_id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	CreatedAt       time.Time       `json:"created_at"`
	EndTime         time.Time       `json:"end_time"`
	OriginalEndTime time.Time       `json:"original_end_time"`
	Status          AuctionStatus   `json:"status"`
	WinnerID        string          `json:"winner_id,omitempty"`
	TimeExtensions  int             `json:"time_extensions"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	CloseReason     string          `json:"close_reason,omitempty"`
}

// Bid represents a user's bid on an item. Withdrawn bids are kept for audit.
type Bid struct {
	BidID       string          `json:"bid_id"`
	ItemID      string          `json:"item_id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
	Withdrawn   bool            `json:"withdrawn"`
	WithdrawnAt *time.Time      `json:"withdrawn_at,omitempty"`
}

// AuctionExtension is the audit record of one end time extension
type AuctionExtension struct {
	ExtensionID string    `json:"extension_id"`
	ItemID      string    `json:"item_id"`
	ExtendedBy  string    `json:"extended_by"`
	OldEndTime  time.Time `json:"old_end_time"`
	NewEndTime  time.Time `json:"new_end_time"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppliedPayment marks an external payment reference as credited
type AppliedPayment struct {
	Reference string          `json:"reference"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// IsOpen reports whether the auction accepts bids at now
func (a AuctionItem) IsOpen(now time.Time) bool {
	return a.Status.IsOpenStatus() && now.Before(a.EndTime)
}
