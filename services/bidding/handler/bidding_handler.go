package handler

import (
	"context"
	"errors"
	"net/http"

	"auction-escrow/internal/auth"
	"auction-escrow/internal/biddingerrors"
	model "auction-escrow/internal/models"
	"auction-escrow/services/bidding/helpers"
	"auction-escrow/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=bidding_handler.go -destination=mock_bidding_service.go -package=handler

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, itemID, userID string, amount decimal.Decimal) (model.PlaceBidResult, error)
	WithdrawBid(ctx context.Context, bidID, userID string) (model.WithdrawBidResult, error)
	GetBidsForItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (model.Bid, error)
	GetItemsByUser(ctx context.Context, userID string) ([]model.AuctionItem, error)
	GetItemsBySeller(ctx context.Context, sellerID string) ([]model.AuctionItem, error)
	GetWonItems(ctx context.Context, userID string) ([]model.AuctionItem, error)

	CreateAuction(ctx context.Context, sellerID string, draft model.AuctionDraft) (model.AuctionItem, error)
	ExtendAuction(ctx context.Context, itemID, userID string, hours int, reason string) (model.AuctionItem, error)
	CloseAuctionEarly(ctx context.Context, itemID, userID string) (model.AuctionItem, error)
	GetAuctionStatus(ctx context.Context, itemID string) (model.AuctionStatusView, error)
	ListOpenAuctions(ctx context.Context) ([]model.AuctionItem, error)
	GetExtensions(ctx context.Context, itemID string) ([]model.AuctionExtension, error)

	ApplyPayment(ctx context.Context, ev model.PaymentEvent) (model.TopUpResult, error)
	WithdrawFunds(ctx context.Context, userID string, amount decimal.Decimal) (model.Wallet, error)
	GetWallet(ctx context.Context, userID string) (model.Wallet, error)
	GetTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// accountID returns the authenticated caller or writes a 401
func accountID(c *gin.Context, handlerName string) (string, bool) {
	id, ok := auth.AccountID(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing authenticated account"), "unauthorized")
		utils.Warn(handlerName+": no authenticated account", nil)
	}
	return id, ok
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	userID, ok := accountID(c, "RecordBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	result, err := h.service.PlaceBid(c.Request.Context(), req.ItemID, userID, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "RecordBidHandler", err, map[string]any{
			"item_id": req.ItemID,
			"user_id": userID,
			"amount":  req.Amount.String(),
		})
		return
	}

	resp := helpers.PlaceBidResponse{
		Bid:          helpers.NewBidResponse(result.Bid),
		CurrentPrice: result.CurrentPrice,
		Balance:      result.Balance,
	}

	utils.JSONResponse(c, http.StatusCreated, resp, "bid recorded successfully")
	helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":  result.Bid.BidID,
		"item_id": result.Bid.ItemID,
		"user_id": userID,
		"amount":  result.Bid.Amount.String(),
	})
}

// WithdrawBidHandler handles POST /bids/:bid_id/withdraw
func (h *BiddingHandler) WithdrawBidHandler(c *gin.Context) {
	userID, ok := accountID(c, "WithdrawBidHandler")
	if !ok {
		return
	}

	bidID := c.Param("bid_id")
	result, err := h.service.WithdrawBid(c.Request.Context(), bidID, userID)
	if err != nil {
		helpers.HandleServiceError(c, "WithdrawBidHandler", err, map[string]any{"bid_id": bidID, "user_id": userID})
		return
	}

	resp := helpers.WithdrawBidResponse{
		Bid:            helpers.NewBidResponse(result.Bid),
		RefundedAmount: result.RefundedAmount,
		CurrentPrice:   result.CurrentPrice,
		Balance:        result.Balance,
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bid withdrawn successfully")
	helpers.LogSuccess("WithdrawBidHandler", "bid withdrawn successfully", map[string]any{
		"bid_id":   bidID,
		"user_id":  userID,
		"refunded": result.RefundedAmount.String(),
	})
}

// GetBidsByItemHandler handles GET /items/:item_id/bids
func (h *BiddingHandler) GetBidsByItemHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	bids, err := h.service.GetBidsForItem(c.Request.Context(), itemID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		helpers.HandleServiceError(c, "GetBidsByItemHandler", err, map[string]any{"item_id": itemID})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.NewBidResponse(bid))
	}

	utils.JSONList(c, http.StatusOK, resp, len(resp), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByItemHandler", "bids retrieved successfully", map[string]any{
		"item_id": itemID,
		"count":   len(resp),
	})
}

// GetWinningBidHandler handles GET /items/:item_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), itemID)
	if err != nil {
		// For auction, winning bid not found -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"item_id": itemID})
			return
		}
		helpers.HandleServiceError(c, "GetWinningBidHandler", err, map[string]any{"item_id": itemID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":  bid.BidID,
		"item_id": bid.ItemID,
		"user_id": bid.UserID,
		"amount":  bid.Amount.String(),
	})
}

// GetItemsByUserHandler handles GET /users/:user_id/items
func (h *BiddingHandler) GetItemsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	items, err := h.service.GetItemsByUser(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		helpers.HandleServiceError(c, "GetItemsByUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	if items == nil {
		items = []model.AuctionItem{}
	}

	utils.JSONList(c, http.StatusOK, items, len(items), "items retrieved successfully")
	helpers.LogSuccess("GetItemsByUserHandler", "items retrieved successfully", map[string]any{
		"user_id":     userID,
		"items_count": len(items),
	})
}

// GetItemsBySellerHandler handles GET /users/:user_id/selling
func (h *BiddingHandler) GetItemsBySellerHandler(c *gin.Context) {
	sellerID := c.Param("user_id")
	items, err := h.service.GetItemsBySeller(c.Request.Context(), sellerID)
	if err != nil {
		helpers.HandleServiceError(c, "GetItemsBySellerHandler", err, map[string]any{"user_id": sellerID})
		return
	}

	if items == nil {
		items = []model.AuctionItem{}
	}
	utils.JSONList(c, http.StatusOK, items, len(items), "listed items retrieved successfully")
}

// GetWonItemsHandler handles GET /users/:user_id/won
func (h *BiddingHandler) GetWonItemsHandler(c *gin.Context) {
	userID := c.Param("user_id")
	items, err := h.service.GetWonItems(c.Request.Context(), userID)
	if err != nil {
		helpers.HandleServiceError(c, "GetWonItemsHandler", err, map[string]any{"user_id": userID})
		return
	}

	if items == nil {
		items = []model.AuctionItem{}
	}
	utils.JSONList(c, http.StatusOK, items, len(items), "won items retrieved successfully")
	helpers.LogSuccess("GetWonItemsHandler", "won items retrieved successfully", map[string]any{
		"user_id":     userID,
		"items_count": len(items),
	})
}
