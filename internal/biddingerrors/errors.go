package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrNotFound       = errors.New("not found")
	ErrItemNotFound   = fmt.Errorf("item %w", ErrNotFound)
	ErrBidNotFound    = fmt.Errorf("bid %w", ErrNotFound)
	ErrWalletNotFound = fmt.Errorf("wallet %w", ErrNotFound)
	ErrNoBids         = errors.New("no bids found for item")
	ErrUserNoBids     = errors.New("user has not placed any bids")

	// ErrConflict signals a concurrent modification; the unit of work may be retried.
	ErrConflict = errors.New("concurrent modification, please retry")
)

// business logic errors
var (
	ErrInvalidBid          = errors.New("invalid bid")
	ErrInvalidAuction      = errors.New("invalid auction")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAuctionNotOpen      = errors.New("auction is not open")
	ErrSelfBid             = errors.New("seller cannot bid on own auction")
	ErrBidTooLow           = errors.New("bid amount too low")
	ErrNotWithdrawable     = errors.New("bid cannot be withdrawn")
	ErrNotExtendable       = errors.New("auction cannot be extended")
	ErrInvalidExtension    = errors.New("invalid extension")
	ErrNotSeller           = errors.New("only the seller can manage this auction")
	ErrInvalidSignature    = errors.New("payment signature invalid")
	ErrInvalidPayment      = errors.New("invalid payment")
)
