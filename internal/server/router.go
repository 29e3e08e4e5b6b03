package server

import (
	"time"

	"auction-escrow/internal/auth"
	handler "auction-escrow/services/bidding/handler"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application. Empty
// allowedOrigins allows every origin.
func SetupRouter(service handler.BiddingServiceInterface, authenticator *auth.Auth, webhook *auth.WebhookVerifier, allowedOrigins []string) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(cors.New(corsConfig(allowedOrigins)))

	biddingHandler := handler.NewBiddingHandler(service)
	requireAuth := authenticator.Middleware()

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.GET("/:item_id", biddingHandler.GetAuctionHandler)
		auctions.GET("/:item_id/extensions", biddingHandler.GetExtensionsHandler)
		auctions.POST("", requireAuth, biddingHandler.CreateAuctionHandler)
		auctions.POST("/:item_id/extend", requireAuth, biddingHandler.ExtendAuctionHandler)
		auctions.POST("/:item_id/close", requireAuth, biddingHandler.CloseAuctionHandler)
	}

	bids := router.Group("/bids", requireAuth)
	{
		bids.POST("", biddingHandler.RecordBidHandler)
		bids.POST("/:bid_id/withdraw", biddingHandler.WithdrawBidHandler)
	}

	items := router.Group("/items")
	{
		items.GET("/:item_id/bids", biddingHandler.GetBidsByItemHandler)
		items.GET("/:item_id/winning", biddingHandler.GetWinningBidHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/items", biddingHandler.GetItemsByUserHandler)
		users.GET("/:user_id/selling", biddingHandler.GetItemsBySellerHandler)
		users.GET("/:user_id/won", biddingHandler.GetWonItemsHandler)
	}

	wallet := router.Group("/wallet", requireAuth)
	{
		wallet.GET("", biddingHandler.GetWalletHandler)
		wallet.GET("/transactions", biddingHandler.GetTransactionsHandler)
		wallet.POST("/withdraw", biddingHandler.WithdrawFundsHandler)
	}

	// the gateway authenticates by signing the body with the shared webhook secret
	router.POST("/payments/completed", PaymentSignatureMiddleware(webhook), biddingHandler.PaymentCompletedHandler)

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", auth.PaymentSignatureHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}
