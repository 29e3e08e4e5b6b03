package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionDraft carries the seller supplied fields of a new auction
type AuctionDraft struct {
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	EndTime       time.Time
}

// PaymentEvent is a completed top-up reported by the payment gateway collaborator
type PaymentEvent struct {
	AccountID         string
	Amount            decimal.Decimal
	ExternalReference string
	SignatureValid    bool
}

// PlaceBidResult is returned by a successful bid placement
type PlaceBidResult struct {
	Bid          Bid
	CurrentPrice decimal.Decimal
	Balance      decimal.Decimal
}

// WithdrawBidResult is returned by a successful bid withdrawal
type WithdrawBidResult struct {
	Bid            Bid
	RefundedAmount decimal.Decimal
	CurrentPrice   decimal.Decimal
	Balance        decimal.Decimal
}

// TopUpResult reports the wallet after a payment event. Applied is false when
// the reference had already been credited.
type TopUpResult struct {
	Wallet  Wallet
	Applied bool
}

// AuctionStatusView is the read model shown for a single auction
type AuctionStatusView struct {
	Item          AuctionItem
	TimeRemaining time.Duration
	BidCount      int
}
