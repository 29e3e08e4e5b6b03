package integrationtests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func createAuction(t *testing.T, env *TestEnv, sellerID, startingPrice string, runFor time.Duration) string {
	t.Helper()
	resp, w := env.Do(t, sellerID, http.MethodPost, "/auctions", map[string]any{
		"title":          "Antique clock",
		"description":    "Works, mostly",
		"starting_price": startingPrice,
		"end_time":       env.Clock.Now().Add(runFor).Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	return Data(t, resp)["item_id"].(string)
}

func paymentBody(t *testing.T, accountID, amount, reference string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"account_id":         accountID,
		"amount":             amount,
		"external_reference": reference,
	})
	require.NoError(t, err)
	return body
}

func topUp(t *testing.T, env *TestEnv, accountID, amount, reference string) map[string]any {
	t.Helper()
	body := paymentBody(t, accountID, amount, reference)
	resp, w := env.Callback(t, body, env.Sign(t, body))
	require.Equal(t, http.StatusOK, w.Code, resp)
	return Data(t, resp)
}

func walletBalance(t *testing.T, env *TestEnv, accountID string) string {
	t.Helper()
	resp, w := env.Do(t, accountID, http.MethodGet, "/wallet", nil)
	require.Equal(t, http.StatusOK, w.Code)
	return Data(t, resp)["balance"].(string)
}

// Full lifecycle: fund, bid, outbid, withdraw, close
func TestAuctionLifecycle(t *testing.T) {
	env := SetupTestEnv(t)

	itemID := createAuction(t, env, "seller", "100", 24*time.Hour)
	topUp(t, env, "alice", "500", "pay-a")
	topUp(t, env, "bob", "500", "pay-b")

	// alice opens at 150
	resp, w := env.Do(t, "alice", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "150"})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	aliceBid := Data(t, resp)["bid"].(map[string]any)["bid_id"].(string)
	require.Equal(t, "350", Data(t, resp)["balance"])

	// bob outbids with 170
	resp, w = env.Do(t, "bob", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "170"})
	require.Equal(t, http.StatusCreated, w.Code, resp)
	require.Equal(t, "170", Data(t, resp)["current_price"])
	bobBid := Data(t, resp)["bid"].(map[string]any)["bid_id"].(string)

	// a bid at the current price is too low
	_, w = env.Do(t, "alice", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "170"})
	require.Equal(t, http.StatusConflict, w.Code)

	// the seller cannot bid
	_, w = env.Do(t, "seller", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "200"})
	require.Equal(t, http.StatusForbidden, w.Code)

	// bob leads and cannot withdraw
	_, w = env.Do(t, "bob", http.MethodPost, fmt.Sprintf("/bids/%s/withdraw", bobBid), nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// alice withdraws inside the window and is refunded
	env.Clock.now = env.Clock.now.Add(2 * time.Minute)
	resp, w = env.Do(t, "alice", http.MethodPost, fmt.Sprintf("/bids/%s/withdraw", aliceBid), nil)
	require.Equal(t, http.StatusOK, w.Code, resp)
	require.Equal(t, "150", Data(t, resp)["refunded_amount"])
	require.Equal(t, "170", Data(t, resp)["current_price"])
	require.Equal(t, "500", walletBalance(t, env, "alice"))

	resp, w = env.Do(t, "", http.MethodGet, fmt.Sprintf("/items/%s/winning", itemID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "bob", Data(t, resp)["user_id"])

	resp, w = env.Do(t, "", http.MethodGet, fmt.Sprintf("/auctions/%s", itemID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), Data(t, resp)["bid_count"])

	// only the seller closes
	_, w = env.Do(t, "bob", http.MethodPost, fmt.Sprintf("/auctions/%s/close", itemID), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	resp, w = env.Do(t, "seller", http.MethodPost, fmt.Sprintf("/auctions/%s/close", itemID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "closed", Data(t, resp)["status"])
	require.Equal(t, "bob", Data(t, resp)["winner_id"])

	_, w = env.Do(t, "alice", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "300"})
	require.Equal(t, http.StatusConflict, w.Code)

	// bob's winning bid stays in escrow
	require.Equal(t, "330", walletBalance(t, env, "bob"))

	resp, w = env.Do(t, "alice", http.MethodGet, "/wallet/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := resp["data"].([]any)
	require.Len(t, entries, 3)
	require.Equal(t, "bid_refund", entries[0].(map[string]any)["kind"])
}

func TestAuthRequired(t *testing.T) {
	env := SetupTestEnv(t)

	tests := []struct {
		method string
		url    string
	}{
		{method: http.MethodPost, url: "/bids"},
		{method: http.MethodPost, url: "/bids/b1/withdraw"},
		{method: http.MethodPost, url: "/auctions"},
		{method: http.MethodPost, url: "/auctions/i1/extend"},
		{method: http.MethodPost, url: "/auctions/i1/close"},
		{method: http.MethodGet, url: "/wallet"},
		{method: http.MethodGet, url: "/wallet/transactions"},
		{method: http.MethodPost, url: "/wallet/withdraw"},
	}

	for _, tt := range tests {
		t.Run(tt.method+"_"+tt.url, func(t *testing.T) {
			_, w := env.Do(t, "", tt.method, tt.url, "{}")
			require.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestPaymentCallbacks(t *testing.T) {
	env := SetupTestEnv(t)

	first := topUp(t, env, "carol", "40.10", "pay-1")
	require.Equal(t, true, first["applied"])

	replay := topUp(t, env, "carol", "40.10", "pay-1")
	require.Equal(t, false, replay["applied"])
	require.Equal(t, "40.1", walletBalance(t, env, "carol"))

	// unsigned, self-certified or tampered callbacks never move money
	forged := []byte(`{"account_id":"carol","amount":"1000","external_reference":"pay-forged","signature_valid":true}`)
	_, w := env.Callback(t, forged, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	_, w = env.Callback(t, forged, env.Sign(t, paymentBody(t, "carol", "1", "pay-small")))
	require.Equal(t, http.StatusForbidden, w.Code)

	_, w = env.Callback(t, paymentBody(t, "mallory", "1000000", "forged-1"), "bm90LWEtc2lnbmF0dXJl")
	require.Equal(t, http.StatusForbidden, w.Code)

	require.Equal(t, "40.1", walletBalance(t, env, "carol"))
	require.Equal(t, "0", walletBalance(t, env, "mallory"))

	resp, w := env.Do(t, "carol", http.MethodPost, "/wallet/withdraw", map[string]any{"amount": "0.10"})
	require.Equal(t, http.StatusOK, w.Code, resp)
	require.Equal(t, "40", Data(t, resp)["balance"])

	_, w = env.Do(t, "carol", http.MethodPost, "/wallet/withdraw", map[string]any{"amount": "41"})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestExtensionsAndExpiry(t *testing.T) {
	env := SetupTestEnv(t)

	itemID := createAuction(t, env, "seller", "10", time.Hour)
	topUp(t, env, "dave", "100", "pay-d")

	for i := 0; i < 3; i++ {
		resp, w := env.Do(t, "seller", http.MethodPost, fmt.Sprintf("/auctions/%s/extend", itemID), map[string]any{"hours": 1, "reason": "late interest"})
		require.Equal(t, http.StatusOK, w.Code, resp)
	}
	_, w := env.Do(t, "seller", http.MethodPost, fmt.Sprintf("/auctions/%s/extend", itemID), map[string]any{"hours": 1})
	require.Equal(t, http.StatusConflict, w.Code)

	resp, w := env.Do(t, "", http.MethodGet, fmt.Sprintf("/auctions/%s/extensions", itemID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 3)

	_, w = env.Do(t, "dave", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "12.50"})
	require.Equal(t, http.StatusCreated, w.Code)

	// four hours later the auction has ended and reads close it
	env.Clock.now = env.Clock.now.Add(4 * time.Hour)

	resp, w = env.Do(t, "", http.MethodGet, "/auctions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"].([]any))

	resp, w = env.Do(t, "", http.MethodGet, fmt.Sprintf("/auctions/%s", itemID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	item := Data(t, resp)["item"].(map[string]any)
	require.Equal(t, "closed", item["status"])
	require.Equal(t, "expired", item["close_reason"])
	require.Equal(t, "dave", item["winner_id"])

	resp, w = env.Do(t, "", http.MethodGet, "/users/dave/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 1)
}

// user listings are the first read after the end time and must still report the settled auction
func TestUserListingsAfterExpiry(t *testing.T) {
	env := SetupTestEnv(t)

	itemID := createAuction(t, env, "seller", "10", time.Hour)
	topUp(t, env, "frank", "50", "pay-f")

	_, w := env.Do(t, "frank", http.MethodPost, "/bids", map[string]any{"item_id": itemID, "amount": "15"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp, w := env.Do(t, "", http.MethodGet, "/users/frank/won", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"].([]any))

	env.Clock.now = env.Clock.now.Add(2 * time.Hour)

	resp, w = env.Do(t, "", http.MethodGet, "/users/frank/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := resp["data"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	require.Equal(t, "closed", item["status"])
	require.Equal(t, "frank", item["winner_id"])

	resp, w = env.Do(t, "", http.MethodGet, "/users/frank/won", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, resp["data"].([]any), 1)
	require.Equal(t, itemID, resp["data"].([]any)[0].(map[string]any)["item_id"])

	resp, w = env.Do(t, "", http.MethodGet, "/users/seller/selling", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), resp["count"])
	require.Equal(t, "closed", resp["data"].([]any)[0].(map[string]any)["status"])
}

func TestUnknownResources(t *testing.T) {
	env := SetupTestEnv(t)

	_, w := env.Do(t, "", http.MethodGet, "/auctions/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	_, w = env.Do(t, "", http.MethodGet, "/items/missing/bids", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	_, w = env.Do(t, "", http.MethodGet, "/items/missing/winning", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	_, w = env.Do(t, "eve", http.MethodPost, "/bids/missing/withdraw", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	resp, w := env.Do(t, "", http.MethodGet, "/users/eve/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, resp["data"].([]any))
}
