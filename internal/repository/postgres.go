package repository

import (
	"auction-escrow/internal/biddingerrors"
	"auction-escrow/internal/models"
	"auction-escrow/utils"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgreSQL error codes mapped to ErrConflict
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

const itemColumns = `id, seller_id, title, description, starting_price, current_price, created_at,
	end_time, original_end_time, status, winner_id, time_extensions, closed_at, close_reason`

const bidColumns = `id, item_id, user_id, amount, created_at, withdrawn, withdrawn_at`

const walletColumns = `id, account_id, balance, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepo is the AuctionDB backed by PostgreSQL. Row locks taken with
// SELECT ... FOR UPDATE provide the per-wallet and per-auction scopes.
type PostgresRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Connect opens a connection pool for dsn and verifies it with a ping
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	utils.Info("database connection established", nil)
	return pool, nil
}

// NewPostgresRepo wraps an open pool
func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the tables used by the repository if they do not exist
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Atomic runs fn inside one database transaction holding row locks for scope
func (r *PostgresRepo) Atomic(ctx context.Context, scope Scope, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", translatePgError(err))
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	ptx := &pgTx{tx: tx, scope: newScopeSet(scope), now: r.now}
	if err := ptx.lock(ctx, scope); err != nil {
		return err
	}

	if err := fn(ptx); err != nil {
		return translatePgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", translatePgError(err))
	}
	return nil
}

// translatePgError maps retryable PostgreSQL failures to ErrConflict
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.Message, biddingerrors.ErrConflict)
		}
	}
	return err
}

// GetItem returns a snapshot of an item
func (r *PostgresRepo) GetItem(ctx context.Context, itemID string) (models.AuctionItem, error) {
	return getItem(ctx, r.pool, itemID)
}

// ListOpenItems returns items with an open status, newest first
func (r *PostgresRepo) ListOpenItems(ctx context.Context) ([]models.AuctionItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM auction_items
		WHERE status IN ('active', 'extended') ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list open items: %w", err)
	}
	return collectItems(rows)
}

// ListExpiredItemIDs returns ids of open items whose end time is at or before now
func (r *PostgresRepo) ListExpiredItemIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM auction_items
		WHERE status IN ('active', 'extended') AND end_time <= $1 ORDER BY id`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired items: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list expired items: %w", err)
	}
	return ids, nil
}

// GetBid returns a snapshot of a bid
func (r *PostgresRepo) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	return getBid(ctx, r.pool, bidID)
}

// GetBidsByItem returns all bids for an item in placement order
func (r *PostgresRepo) GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	if _, err := getItem(ctx, r.pool, itemID); err != nil {
		return nil, fmt.Errorf("get bids: %w", err)
	}
	bids, err := bidsByItem(ctx, r.pool, itemID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetItemsByUser returns all items a user has bid on
func (r *PostgresRepo) GetItemsByUser(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM auction_items
		WHERE id IN (SELECT item_id FROM bids WHERE user_id = $1) ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("get items for user %s: %w", userID, err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return items, nil
}

// GetItemsBySeller returns every item listed by sellerID, oldest first
func (r *PostgresRepo) GetItemsBySeller(ctx context.Context, sellerID string) ([]models.AuctionItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM auction_items
		WHERE seller_id = $1 ORDER BY created_at, id`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("get items for seller %s: %w", sellerID, err)
	}
	return collectItems(rows)
}

// GetWonItems returns closed items won by userID, oldest first
func (r *PostgresRepo) GetWonItems(ctx context.Context, userID string) ([]models.AuctionItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM auction_items
		WHERE winner_id = $1 AND winner_id <> '' AND status = 'closed' ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("get won items for user %s: %w", userID, err)
	}
	return collectItems(rows)
}

// GetExtensions returns the extension audit trail of an item, oldest first
func (r *PostgresRepo) GetExtensions(ctx context.Context, itemID string) ([]models.AuctionExtension, error) {
	if _, err := getItem(ctx, r.pool, itemID); err != nil {
		return nil, fmt.Errorf("get extensions: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, item_id, extended_by, old_end_time, new_end_time, reason, created_at
		FROM auction_extensions WHERE item_id = $1 ORDER BY created_at`, itemID)
	if err != nil {
		return nil, fmt.Errorf("get extensions for item %s: %w", itemID, err)
	}
	defer rows.Close()

	exts := make([]models.AuctionExtension, 0)
	for rows.Next() {
		var e models.AuctionExtension
		if err := rows.Scan(&e.ExtensionID, &e.ItemID, &e.ExtendedBy, &e.OldEndTime, &e.NewEndTime, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extension: %w", err)
		}
		exts = append(exts, e)
	}
	return exts, rows.Err()
}

// GetTransactions returns an account's ledger, newest first
func (r *PostgresRepo) GetTransactions(ctx context.Context, accountID string) ([]models.WalletTransaction, error) {
	var walletID string
	err := r.pool.QueryRow(ctx, `SELECT id FROM wallets WHERE account_id = $1`, accountID).Scan(&walletID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get transactions for account %s: %w", accountID, biddingerrors.ErrWalletNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet for account %s: %w", accountID, err)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, wallet_id, account_id, kind, amount, balance_after, description, reference, created_at
		FROM wallet_transactions WHERE account_id = $1 ORDER BY seq DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("get transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	entries := make([]models.WalletTransaction, 0)
	for rows.Next() {
		var e models.WalletTransaction
		if err := rows.Scan(&e.ID, &e.WalletID, &e.AccountID, &e.Kind, &e.Amount, &e.BalanceAfter, &e.Description, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// pgTx is the Tx view over an open pgx transaction
type pgTx struct {
	tx    pgx.Tx
	scope scopeSet
	now   func() time.Time
}

// lock creates missing wallets and then locks wallet and auction rows in sorted order
func (t *pgTx) lock(ctx context.Context, scope Scope) error {
	wallets := sortedUnique(scope.Wallets)
	for _, accountID := range wallets {
		if err := t.ensureWallet(ctx, accountID); err != nil {
			return err
		}
	}
	if len(wallets) > 0 {
		if _, err := t.tx.Exec(ctx, `SELECT 1 FROM wallets WHERE account_id = ANY($1)
			ORDER BY account_id FOR UPDATE`, wallets); err != nil {
			return fmt.Errorf("lock wallets: %w", translatePgError(err))
		}
	}

	auctions := sortedUnique(scope.Auctions)
	if len(auctions) > 0 {
		if _, err := t.tx.Exec(ctx, `SELECT 1 FROM auction_items WHERE id = ANY($1)
			ORDER BY id FOR UPDATE`, auctions); err != nil {
			return fmt.Errorf("lock auctions: %w", translatePgError(err))
		}
	}
	return nil
}

func (t *pgTx) ensureWallet(ctx context.Context, accountID string) error {
	now := t.now()
	_, err := t.tx.Exec(ctx, `INSERT INTO wallets (id, account_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $3) ON CONFLICT (account_id) DO NOTHING`,
		utils.GenerateID(), accountID, now)
	if err != nil {
		return fmt.Errorf("create wallet for %s: %w", accountID, translatePgError(err))
	}
	return nil
}

func (t *pgTx) GetItem(ctx context.Context, itemID string) (models.AuctionItem, error) {
	return getItem(ctx, t.tx, itemID)
}

func (t *pgTx) InsertItem(ctx context.Context, item models.AuctionItem) error {
	if !t.scope.hasAuction(item.ItemID) {
		return fmt.Errorf("insert item %s: %w", item.ItemID, ErrOutOfScope)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO auction_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		item.ItemID, item.SellerID, item.Title, item.Description, item.StartingPrice, item.CurrentPrice,
		item.CreatedAt, item.EndTime, item.OriginalEndTime, string(item.Status), item.WinnerID,
		item.TimeExtensions, item.ClosedAt, item.CloseReason)
	if err != nil {
		return fmt.Errorf("insert item %s: %w", item.ItemID, translatePgError(err))
	}
	return nil
}

func (t *pgTx) UpdateItem(ctx context.Context, item models.AuctionItem) error {
	if !t.scope.hasAuction(item.ItemID) {
		return fmt.Errorf("update item %s: %w", item.ItemID, ErrOutOfScope)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE auction_items SET current_price = $2, end_time = $3, status = $4,
		winner_id = $5, time_extensions = $6, closed_at = $7, close_reason = $8 WHERE id = $1`,
		item.ItemID, item.CurrentPrice, item.EndTime, string(item.Status), item.WinnerID,
		item.TimeExtensions, item.ClosedAt, item.CloseReason)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ItemID, translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update item %s: %w", item.ItemID, biddingerrors.ErrItemNotFound)
	}
	return nil
}

func (t *pgTx) GetBid(ctx context.Context, bidID string) (models.Bid, error) {
	return getBid(ctx, t.tx, bidID)
}

func (t *pgTx) GetBidsByItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	return bidsByItem(ctx, t.tx, itemID)
}

func (t *pgTx) InsertBid(ctx context.Context, bid models.Bid) error {
	if !t.scope.hasAuction(bid.ItemID) {
		return fmt.Errorf("insert bid %s: %w", bid.BidID, ErrOutOfScope)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		bid.BidID, bid.ItemID, bid.UserID, bid.Amount, bid.CreatedAt, bid.Withdrawn, bid.WithdrawnAt)
	if err != nil {
		return fmt.Errorf("insert bid %s: %w", bid.BidID, translatePgError(err))
	}
	return nil
}

func (t *pgTx) UpdateBid(ctx context.Context, bid models.Bid) error {
	if !t.scope.hasAuction(bid.ItemID) {
		return fmt.Errorf("update bid %s: %w", bid.BidID, ErrOutOfScope)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE bids SET withdrawn = $2, withdrawn_at = $3 WHERE id = $1`,
		bid.BidID, bid.Withdrawn, bid.WithdrawnAt)
	if err != nil {
		return fmt.Errorf("update bid %s: %w", bid.BidID, translatePgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update bid %s: %w", bid.BidID, biddingerrors.ErrBidNotFound)
	}
	return nil
}

func (t *pgTx) GetWallet(ctx context.Context, accountID string) (models.Wallet, error) {
	if t.scope.hasWallet(accountID) {
		if err := t.ensureWallet(ctx, accountID); err != nil {
			return models.Wallet{}, err
		}
	}

	var w models.Wallet
	err := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, accountID).
		Scan(&w.ID, &w.AccountID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Wallet{}, fmt.Errorf("get wallet %s: %w", accountID, biddingerrors.ErrWalletNotFound)
	}
	if err != nil {
		return models.Wallet{}, fmt.Errorf("get wallet %s: %w", accountID, err)
	}
	return w, nil
}

func (t *pgTx) UpdateWallet(ctx context.Context, wallet models.Wallet) error {
	if !t.scope.hasWallet(wallet.AccountID) {
		return fmt.Errorf("update wallet %s: %w", wallet.AccountID, ErrOutOfScope)
	}
	_, err := t.tx.Exec(ctx, `UPDATE wallets SET balance = $2, updated_at = $3 WHERE account_id = $1`,
		wallet.AccountID, wallet.Balance, wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update wallet %s: %w", wallet.AccountID, translatePgError(err))
	}
	return nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, e models.WalletTransaction) error {
	if !t.scope.hasWallet(e.AccountID) {
		return fmt.Errorf("append transaction for %s: %w", e.AccountID, ErrOutOfScope)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO wallet_transactions
		(id, wallet_id, account_id, kind, amount, balance_after, description, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.WalletID, e.AccountID, string(e.Kind), e.Amount, e.BalanceAfter, e.Description, e.Reference, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append transaction for %s: %w", e.AccountID, translatePgError(err))
	}
	return nil
}

func (t *pgTx) InsertExtension(ctx context.Context, e models.AuctionExtension) error {
	if !t.scope.hasAuction(e.ItemID) {
		return fmt.Errorf("insert extension for %s: %w", e.ItemID, ErrOutOfScope)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO auction_extensions
		(id, item_id, extended_by, old_end_time, new_end_time, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ExtensionID, e.ItemID, e.ExtendedBy, e.OldEndTime, e.NewEndTime, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert extension for %s: %w", e.ItemID, translatePgError(err))
	}
	return nil
}

func (t *pgTx) IsPaymentApplied(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applied_payments WHERE reference = $1)`, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment %s: %w", reference, err)
	}
	return exists, nil
}

func (t *pgTx) RecordPayment(ctx context.Context, p models.AppliedPayment) error {
	if !t.scope.hasWallet(p.AccountID) {
		return fmt.Errorf("record payment %s: %w", p.Reference, ErrOutOfScope)
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO applied_payments (reference, account_id, amount, applied_at)
		VALUES ($1, $2, $3, $4)`, p.Reference, p.AccountID, p.Amount, p.AppliedAt)
	if err != nil {
		return fmt.Errorf("record payment %s: %w", p.Reference, translatePgError(err))
	}
	return nil
}

func getItem(ctx context.Context, q querier, itemID string) (models.AuctionItem, error) {
	item, err := scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+` FROM auction_items WHERE id = $1`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AuctionItem{}, fmt.Errorf("get item %s: %w", itemID, biddingerrors.ErrItemNotFound)
	}
	if err != nil {
		return models.AuctionItem{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return item, nil
}

func scanItem(row pgx.Row) (models.AuctionItem, error) {
	var item models.AuctionItem
	var status string
	err := row.Scan(&item.ItemID, &item.SellerID, &item.Title, &item.Description, &item.StartingPrice,
		&item.CurrentPrice, &item.CreatedAt, &item.EndTime, &item.OriginalEndTime, &status, &item.WinnerID,
		&item.TimeExtensions, &item.ClosedAt, &item.CloseReason)
	item.Status = models.AuctionStatus(status)
	return item, err
}

func collectItems(rows pgx.Rows) ([]models.AuctionItem, error) {
	defer rows.Close()

	items := make([]models.AuctionItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func getBid(ctx context.Context, q querier, bidID string) (models.Bid, error) {
	var b models.Bid
	err := q.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, bidID).
		Scan(&b.BidID, &b.ItemID, &b.UserID, &b.Amount, &b.CreatedAt, &b.Withdrawn, &b.WithdrawnAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Bid{}, fmt.Errorf("get bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	if err != nil {
		return models.Bid{}, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return b, nil
}

func bidsByItem(ctx context.Context, q querier, itemID string) ([]models.Bid, error) {
	rows, err := q.Query(ctx, `SELECT `+bidColumns+` FROM bids WHERE item_id = $1 ORDER BY seq`, itemID)
	if err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, err)
	}
	defer rows.Close()

	bids := make([]models.Bid, 0)
	for rows.Next() {
		var b models.Bid
		if err := rows.Scan(&b.BidID, &b.ItemID, &b.UserID, &b.Amount, &b.CreatedAt, &b.Withdrawn, &b.WithdrawnAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}
