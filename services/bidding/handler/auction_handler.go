package handler

import (
	"net/http"

	model "auction-escrow/internal/models"
	"auction-escrow/services/bidding/helpers"
	"auction-escrow/utils"

	"github.com/gin-gonic/gin"
)

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	sellerID, ok := accountID(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	item, err := h.service.CreateAuction(c.Request.Context(), sellerID, model.AuctionDraft{
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		EndTime:       req.EndTime,
	})
	if err != nil {
		helpers.HandleServiceError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": sellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, item, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"item_id":   item.ItemID,
		"seller_id": sellerID,
	})
}

// ListAuctionsHandler handles GET /auctions
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	items, err := h.service.ListOpenAuctions(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "ListAuctionsHandler", err, nil)
		return
	}

	if items == nil {
		items = []model.AuctionItem{}
	}

	utils.JSONList(c, http.StatusOK, items, len(items), "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:item_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	view, err := h.service.GetAuctionStatus(c.Request.Context(), itemID)
	if err != nil {
		helpers.HandleServiceError(c, "GetAuctionHandler", err, map[string]any{"item_id": itemID})
		return
	}

	resp := helpers.AuctionStatusResponse{
		Item:                 view.Item,
		TimeRemainingSeconds: int64(view.TimeRemaining.Seconds()),
		BidCount:             view.BidCount,
	}
	utils.JSONResponse(c, http.StatusOK, resp, "auction retrieved successfully")
}

// ExtendAuctionHandler handles POST /auctions/:item_id/extend
func (h *BiddingHandler) ExtendAuctionHandler(c *gin.Context) {
	userID, ok := accountID(c, "ExtendAuctionHandler")
	if !ok {
		return
	}

	var req helpers.ExtendAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "ExtendAuctionHandler", err)
		return
	}

	itemID := c.Param("item_id")
	item, err := h.service.ExtendAuction(c.Request.Context(), itemID, userID, req.Hours, req.Reason)
	if err != nil {
		helpers.HandleServiceError(c, "ExtendAuctionHandler", err, map[string]any{
			"item_id": itemID,
			"user_id": userID,
			"hours":   req.Hours,
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, item, "auction extended successfully")
	helpers.LogSuccess("ExtendAuctionHandler", "auction extended successfully", map[string]any{
		"item_id":         itemID,
		"time_extensions": item.TimeExtensions,
	})
}

// CloseAuctionHandler handles POST /auctions/:item_id/close
func (h *BiddingHandler) CloseAuctionHandler(c *gin.Context) {
	userID, ok := accountID(c, "CloseAuctionHandler")
	if !ok {
		return
	}

	itemID := c.Param("item_id")
	item, err := h.service.CloseAuctionEarly(c.Request.Context(), itemID, userID)
	if err != nil {
		helpers.HandleServiceError(c, "CloseAuctionHandler", err, map[string]any{"item_id": itemID, "user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, item, "auction closed successfully")
	helpers.LogSuccess("CloseAuctionHandler", "auction closed successfully", map[string]any{
		"item_id":   itemID,
		"winner_id": item.WinnerID,
	})
}

// GetExtensionsHandler handles GET /auctions/:item_id/extensions
func (h *BiddingHandler) GetExtensionsHandler(c *gin.Context) {
	itemID := c.Param("item_id")
	exts, err := h.service.GetExtensions(c.Request.Context(), itemID)
	if err != nil {
		helpers.HandleServiceError(c, "GetExtensionsHandler", err, map[string]any{"item_id": itemID})
		return
	}

	if exts == nil {
		exts = []model.AuctionExtension{}
	}
	utils.JSONList(c, http.StatusOK, exts, len(exts), "extensions retrieved successfully")
}
