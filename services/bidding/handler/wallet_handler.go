package handler

import (
	"net/http"

	"auction-escrow/internal/auth"
	model "auction-escrow/internal/models"
	"auction-escrow/services/bidding/helpers"
	"auction-escrow/utils"

	"github.com/gin-gonic/gin"
)

// GetWalletHandler handles GET /wallet
func (h *BiddingHandler) GetWalletHandler(c *gin.Context) {
	userID, ok := accountID(c, "GetWalletHandler")
	if !ok {
		return
	}

	w, err := h.service.GetWallet(c.Request.Context(), userID)
	if err != nil {
		helpers.HandleServiceError(c, "GetWalletHandler", err, map[string]any{"user_id": userID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, w, "wallet retrieved successfully")
}

// GetTransactionsHandler handles GET /wallet/transactions
func (h *BiddingHandler) GetTransactionsHandler(c *gin.Context) {
	userID, ok := accountID(c, "GetTransactionsHandler")
	if !ok {
		return
	}

	entries, err := h.service.GetTransactions(c.Request.Context(), userID)
	if err != nil {
		helpers.HandleServiceError(c, "GetTransactionsHandler", err, map[string]any{"user_id": userID})
		return
	}

	if entries == nil {
		entries = []model.WalletTransaction{}
	}
	utils.JSONList(c, http.StatusOK, entries, len(entries), "transactions retrieved successfully")
}

// WithdrawFundsHandler handles POST /wallet/withdraw
func (h *BiddingHandler) WithdrawFundsHandler(c *gin.Context) {
	userID, ok := accountID(c, "WithdrawFundsHandler")
	if !ok {
		return
	}

	var req helpers.WithdrawFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "WithdrawFundsHandler", err)
		return
	}

	w, err := h.service.WithdrawFunds(c.Request.Context(), userID, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "WithdrawFundsHandler", err, map[string]any{
			"user_id": userID,
			"amount":  req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, w, "funds withdrawn successfully")
	helpers.LogSuccess("WithdrawFundsHandler", "funds withdrawn successfully", map[string]any{
		"user_id": userID,
		"amount":  req.Amount.String(),
	})
}

// PaymentCompletedHandler handles POST /payments/completed, the gateway's settlement callback
func (h *BiddingHandler) PaymentCompletedHandler(c *gin.Context) {
	var req helpers.PaymentCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PaymentCompletedHandler", err)
		return
	}

	result, err := h.service.ApplyPayment(c.Request.Context(), model.PaymentEvent{
		AccountID:         req.AccountID,
		Amount:            req.Amount,
		ExternalReference: req.ExternalReference,
		SignatureValid:    auth.SignatureValid(c),
	})
	if err != nil {
		helpers.HandleServiceError(c, "PaymentCompletedHandler", err, map[string]any{
			"account_id": req.AccountID,
			"reference":  req.ExternalReference,
		})
		return
	}

	message := "payment applied"
	if !result.Applied {
		message = "payment already applied"
	}
	utils.JSONResponse(c, http.StatusOK, helpers.TopUpResponse{Wallet: result.Wallet, Applied: result.Applied}, message)
}
