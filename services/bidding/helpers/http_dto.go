package helpers

import (
	"time"

	model "auction-escrow/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs. Amounts travel as decimal strings or numbers and are
// validated by the service.
type PlaceBidRequest struct {
	ItemID string          `json:"item_id" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type CreateAuctionRequest struct {
	Title         string          `json:"title" binding:"required"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndTime       time.Time       `json:"end_time" binding:"required"`
}

type ExtendAuctionRequest struct {
	Hours  int    `json:"hours" binding:"required"`
	Reason string `json:"reason"`
}

type WithdrawFundsRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PaymentCompletedRequest is the payload the payment gateway posts once a top-up settles.
// Its authenticity comes from the signature header, never from the body.
type PaymentCompletedRequest struct {
	AccountID         string          `json:"account_id" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	ExternalReference string          `json:"external_reference" binding:"required"`
}

type BidResponse struct {
	BidID       string          `json:"bid_id"`
	ItemID      string          `json:"item_id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   string          `json:"created_at"`
	Withdrawn   bool            `json:"withdrawn"`
	WithdrawnAt string          `json:"withdrawn_at,omitempty"`
}

type PlaceBidResponse struct {
	Bid          BidResponse     `json:"bid"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Balance      decimal.Decimal `json:"balance"`
}

type WithdrawBidResponse struct {
	Bid            BidResponse     `json:"bid"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	Balance        decimal.Decimal `json:"balance"`
}

type AuctionStatusResponse struct {
	Item                 model.AuctionItem `json:"item"`
	TimeRemainingSeconds int64             `json:"time_remaining_seconds"`
	BidCount             int               `json:"bid_count"`
}

type TopUpResponse struct {
	Wallet  model.Wallet `json:"wallet"`
	Applied bool         `json:"applied"`
}

// NewBidResponse converts a bid into its wire form
func NewBidResponse(bid model.Bid) BidResponse {
	resp := BidResponse{
		BidID:     bid.BidID,
		ItemID:    bid.ItemID,
		UserID:    bid.UserID,
		Amount:    bid.Amount,
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
		Withdrawn: bid.Withdrawn,
	}
	if bid.WithdrawnAt != nil {
		resp.WithdrawnAt = bid.WithdrawnAt.UTC().Format(time.RFC3339)
	}
	return resp
}
