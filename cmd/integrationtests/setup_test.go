package integrationtests

import (
	"auction-escrow/internal/auth"
	bidding "auction-escrow/internal/biddingService"
	"auction-escrow/internal/repository"
	"auction-escrow/internal/server"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "integration-secret"
	testWebhookSecret = "integration-webhook-secret"
)

// testClock lets a test move the service clock forward
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// TestEnv is a router wired to an in-memory repository plus a token issuer
type TestEnv struct {
	Router *gin.Engine
	Repo   *repository.MemoryRepo
	Clock  *testClock
	auth   *auth.Auth
	hook   *auth.WebhookVerifier
}

// SetupTestEnv initializes the router with in-memory repository for integration testing.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := auth.NewAuth(testSecret)
	require.NoError(t, err)
	hook, err := auth.NewWebhookVerifier(testWebhookSecret)
	require.NoError(t, err)

	clock := &testClock{now: time.Now().UTC()}
	repo := repository.NewMemoryRepo()
	service := bidding.NewBiddingService(repo, bidding.WithClock(clock.Now))

	return &TestEnv{
		Router: server.SetupRouter(service, a, hook, nil),
		Repo:   repo,
		Clock:  clock,
		auth:   a,
		hook:   hook,
	}
}

// Token issues a bearer token for accountID
func (e *TestEnv) Token(t *testing.T, accountID string) string {
	t.Helper()
	token, err := e.auth.GenerateJWT(accountID)
	require.NoError(t, err)
	return token
}

// Sign returns the gateway signature header value for body
func (e *TestEnv) Sign(t *testing.T, body []byte) string {
	t.Helper()
	sig, err := e.hook.Sign(body)
	require.NoError(t, err)
	return sig
}

// Callback posts a gateway payment callback with the given signature header (none when empty)
func (e *TestEnv) Callback(t *testing.T, body []byte, signature string) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/payments/completed", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(auth.PaymentSignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	return resp, w
}

// Do executes a request as accountID (anonymous when empty) and parses the response envelope
func (e *TestEnv) Do(t *testing.T, accountID, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set("Authorization", "Bearer "+e.Token(t, accountID))
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

// Data returns the data object of a successful response
func Data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", resp)
	return data
}
