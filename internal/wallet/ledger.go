package wallet

import (
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/models"
	"auction-escrow/internal/repository"
	"auction-escrow/utils"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits money is kept in
const MinorUnits = 2

// Entry describes one balance movement
type Entry struct {
	AccountID   string
	Amount      decimal.Decimal
	Kind        models.TransactionKind
	Description string
	Reference   string
}

// ValidateAmount rejects non-positive amounts and amounts finer than the currency minor unit
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w - amount must be positive, got %s", biddingerrors.ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Round(MinorUnits)) {
		return fmt.Errorf("%w - amount %s has more than %d decimal places", biddingerrors.ErrInvalidAmount, amount, MinorUnits)
	}
	return nil
}

// Credit adds e.Amount to the account's wallet and appends the ledger entry
// recording it. Both writes go through tx and stand or fall with it.
func Credit(ctx context.Context, tx repository.Tx, e Entry, now time.Time) (models.WalletTransaction, error) {
	if err := ValidateAmount(e.Amount); err != nil {
		return models.WalletTransaction{}, fmt.Errorf("credit: %w", err)
	}

	w, err := tx.GetWallet(ctx, e.AccountID)
	if err != nil {
		return models.WalletTransaction{}, fmt.Errorf("credit: %w", err)
	}

	w.Balance = w.Balance.Add(e.Amount)
	return apply(ctx, tx, w, e, now)
}

// Debit removes e.Amount from the account's wallet. The balance is left
// untouched when it does not cover the amount.
func Debit(ctx context.Context, tx repository.Tx, e Entry, now time.Time) (models.WalletTransaction, error) {
	if err := ValidateAmount(e.Amount); err != nil {
		return models.WalletTransaction{}, fmt.Errorf("debit: %w", err)
	}

	w, err := tx.GetWallet(ctx, e.AccountID)
	if err != nil {
		return models.WalletTransaction{}, fmt.Errorf("debit: %w", err)
	}

	if e.Amount.GreaterThan(w.Balance) {
		return models.WalletTransaction{}, fmt.Errorf("debit: %w - balance %s, requested %s",
			biddingerrors.ErrInsufficientBalance, w.Balance.StringFixed(MinorUnits), e.Amount.StringFixed(MinorUnits))
	}

	w.Balance = w.Balance.Sub(e.Amount)
	return apply(ctx, tx, w, e, now)
}

func apply(ctx context.Context, tx repository.Tx, w models.Wallet, e Entry, now time.Time) (models.WalletTransaction, error) {
	w.UpdatedAt = now
	if err := tx.UpdateWallet(ctx, w); err != nil {
		return models.WalletTransaction{}, fmt.Errorf("update wallet: %w", err)
	}

	entry := models.WalletTransaction{
		ID:           utils.GenerateID(),
		WalletID:     w.ID,
		AccountID:    w.AccountID,
		Kind:         e.Kind,
		Amount:       e.Amount,
		BalanceAfter: w.Balance,
		Description:  e.Description,
		Reference:    e.Reference,
		CreatedAt:    now,
	}
	if err := tx.AppendTransaction(ctx, entry); err != nil {
		return models.WalletTransaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return entry, nil
}
