package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-escrow/internal/auth"
	bidding "auction-escrow/internal/biddingService"
	"auction-escrow/internal/config"
	model "auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/internal/server"
	"auction-escrow/internal/sweeper"
	"auction-escrow/utils"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		utils.Fatal("failed to load configuration", map[string]any{"error": err.Error()})
	}
	utils.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo := openRepository(ctx, cfg)
	defer closeRepo()

	biddingSvc := bidding.NewBiddingService(repo,
		bidding.WithWithdrawWindow(cfg.WithdrawWindow),
		bidding.WithMaxConflictRetries(cfg.MaxConflictRetries),
	)

	if _, ok := repo.(*repository.MemoryRepo); ok {
		prepopulateItems(ctx, biddingSvc)
	}

	go sweeper.New(repo).Run(ctx, cfg.SweepInterval)

	authenticator, err := auth.NewAuth(cfg.JWTSecret)
	if err != nil {
		utils.Fatal("failed to configure authentication", map[string]any{"error": err.Error()})
	}

	webhook, err := auth.NewWebhookVerifier(cfg.WebhookSecret)
	if err != nil {
		utils.Fatal("failed to configure payment webhook", map[string]any{"error": err.Error()})
	}

	router := server.SetupRouter(biddingSvc, authenticator, webhook, cfg.CORSOrigins)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Fatal("failed to start server", map[string]any{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down auction server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
}

// openRepository connects to Postgres when DATABASE_URL is set and falls back to the in-memory store
func openRepository(ctx context.Context, cfg *config.Config) (repository.AuctionDB, func()) {
	if cfg.DatabaseURL == "" {
		utils.Info("using in-memory repository", nil)
		return repository.NewMemoryRepo(), func() {}
	}

	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		utils.Fatal("failed to connect to database", map[string]any{"error": err.Error()})
	}

	repo := repository.NewPostgresRepo(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		utils.Fatal("failed to apply schema", map[string]any{"error": err.Error()})
	}
	utils.Info("using postgres repository", nil)
	return repo, pool.Close
}

// prepopulateItems opens a few demo auctions in the in-memory store
func prepopulateItems(ctx context.Context, svc *bidding.BiddingService) {
	endTime := time.Now().UTC().Add(24 * time.Hour)
	drafts := []model.AuctionDraft{
		{Title: "title1", Description: "description1", StartingPrice: decimal.NewFromInt(100), EndTime: endTime},
		{Title: "title2", Description: "Description2", StartingPrice: decimal.NewFromInt(200), EndTime: endTime},
		{Title: "title3", Description: "Description3", StartingPrice: decimal.NewFromInt(150), EndTime: endTime},
	}

	for _, draft := range drafts {
		if _, err := svc.CreateAuction(ctx, "demo-seller", draft); err != nil {
			utils.Warn("failed to seed demo auction", map[string]any{"title": draft.Title, "error": err.Error()})
		}
	}
}
