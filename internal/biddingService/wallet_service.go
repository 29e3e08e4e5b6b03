package bidding

import (
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/internal/wallet"
	"auction-escrow/utils"
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ApplyPayment credits a completed gateway top-up at most once per external reference
func (s *BiddingService) ApplyPayment(ctx context.Context, ev models.PaymentEvent) (models.TopUpResult, error) {
	if !ev.SignatureValid {
		return models.TopUpResult{}, fmt.Errorf("service: %w - reference %s", biddingerrors.ErrInvalidSignature, ev.ExternalReference)
	}
	if ev.AccountID == "" || ev.ExternalReference == "" {
		return models.TopUpResult{}, fmt.Errorf("service: %w - missing account or reference", biddingerrors.ErrInvalidPayment)
	}
	if err := wallet.ValidateAmount(ev.Amount); err != nil {
		return models.TopUpResult{}, fmt.Errorf("service: %w", err)
	}

	var result models.TopUpResult
	err := s.atomic(ctx, repository.Scope{Wallets: []string{ev.AccountID}}, func(tx repository.Tx) error {
		now := s.now()

		applied, err := tx.IsPaymentApplied(ctx, ev.ExternalReference)
		if err != nil {
			return err
		}
		if !applied {
			if _, err := wallet.Credit(ctx, tx, wallet.Entry{
				AccountID:   ev.AccountID,
				Amount:      ev.Amount,
				Kind:        models.KindDeposit,
				Description: fmt.Sprintf("Added %s to wallet", ev.Amount.StringFixed(wallet.MinorUnits)),
				Reference:   ev.ExternalReference,
			}, now); err != nil {
				return err
			}
			if err := tx.RecordPayment(ctx, models.AppliedPayment{
				Reference: ev.ExternalReference,
				AccountID: ev.AccountID,
				Amount:    ev.Amount,
				AppliedAt: now,
			}); err != nil {
				return err
			}
		}

		w, err := tx.GetWallet(ctx, ev.AccountID)
		if err != nil {
			return err
		}
		result = models.TopUpResult{Wallet: w, Applied: !applied}
		return nil
	})
	if err != nil {
		return models.TopUpResult{}, fmt.Errorf("service: failed to apply payment %s: %w", ev.ExternalReference, err)
	}

	utils.Info("payment processed", map[string]any{
		"account_id": ev.AccountID,
		"reference":  ev.ExternalReference,
		"amount":     ev.Amount.String(),
		"applied":    result.Applied,
	})
	return result, nil
}

// WithdrawFunds debits an amount the account takes out of its wallet
func (s *BiddingService) WithdrawFunds(ctx context.Context, userID string, amount decimal.Decimal) (models.Wallet, error) {
	if userID == "" {
		return models.Wallet{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidPayment)
	}
	if err := wallet.ValidateAmount(amount); err != nil {
		return models.Wallet{}, fmt.Errorf("service: %w", err)
	}

	var w models.Wallet
	err := s.atomic(ctx, repository.Scope{Wallets: []string{userID}}, func(tx repository.Tx) error {
		if _, err := wallet.Debit(ctx, tx, wallet.Entry{
			AccountID:   userID,
			Amount:      amount,
			Kind:        models.KindWithdrawal,
			Description: fmt.Sprintf("Withdrew %s from wallet", amount.StringFixed(wallet.MinorUnits)),
		}, s.now()); err != nil {
			return err
		}

		var err error
		w, err = tx.GetWallet(ctx, userID)
		return err
	})
	if err != nil {
		return models.Wallet{}, fmt.Errorf("service: failed to withdraw funds for user %s: %w", userID, err)
	}
	return w, nil
}

// GetWallet returns the account's wallet, creating an empty one on first access
func (s *BiddingService) GetWallet(ctx context.Context, userID string) (models.Wallet, error) {
	if userID == "" {
		return models.Wallet{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidPayment)
	}

	var w models.Wallet
	err := s.atomic(ctx, repository.Scope{Wallets: []string{userID}}, func(tx repository.Tx) error {
		var err error
		w, err = tx.GetWallet(ctx, userID)
		return err
	})
	if err != nil {
		return models.Wallet{}, fmt.Errorf("service: failed to get wallet for user %s: %w", userID, err)
	}
	return w, nil
}

// GetTransactions returns the account's ledger, newest first
func (s *BiddingService) GetTransactions(ctx context.Context, userID string) ([]models.WalletTransaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidPayment)
	}

	entries, err := s.repo.GetTransactions(ctx, userID)
	if errors.Is(err, biddingerrors.ErrWalletNotFound) {
		return []models.WalletTransaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: failed to get transactions for user %s: %w", userID, err)
	}
	return entries, nil
}
