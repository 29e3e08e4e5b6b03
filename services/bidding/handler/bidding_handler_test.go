package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-escrow/internal/auth"
	"auction-escrow/internal/biddingerrors"
	model "auction-escrow/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// decimalEq matches a decimal argument by value, ignoring its exponent
type decimalEq struct{ want decimal.Decimal }

func amountOf(s string) gomock.Matcher {
	return decimalEq{want: decimal.RequireFromString(s)}
}

func (m decimalEq) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string {
	return "is decimal " + m.want.String()
}

// asAccount stands in for the JWT middleware
func asAccount(accountID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if accountID != "" {
			c.Set(auth.ContextKey, accountID)
		}
		c.Next()
	}
}

func newTestRouter(accountID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(asAccount(accountID))
	return router
}

// serve performs a request and decodes the standard response envelope
func serve(t *testing.T, router *gin.Engine, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

// Test RecordBidHandler
func TestRecordBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("user1")
	router.POST("/bids", handler.RecordBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			requestBody: `{"item_id":"item1","amount":"100.50"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("100.50")).
					Return(model.PlaceBidResult{
						Bid: model.Bid{
							BidID:     uuid.NewString(),
							ItemID:    "item1",
							UserID:    "user1",
							Amount:    decimal.RequireFromString("100.50"),
							CreatedAt: now,
						},
						CurrentPrice: decimal.RequireFromString("100.50"),
						Balance:      decimal.RequireFromString("399.50"),
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				bid := data["bid"].(map[string]any)
				_, parseErr := uuid.Parse(bid["bid_id"].(string))
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "item1", bid["item_id"])
				require.Equal(t, "user1", bid["user_id"])
				require.Equal(t, "100.5", bid["amount"])
				require.Equal(t, "100.5", data["current_price"])
				require.Equal(t, "399.5", data["balance"])
			},
		},
		{
			name:        "numeric_amount",
			requestBody: `{"item_id":"item1","amount":75}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("75")).
					Return(model.PlaceBidResult{Bid: model.Bid{BidID: uuid.NewString(), ItemID: "item1", UserID: "user1"}}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_item_id",
			requestBody:    `{"amount":"50"}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "service_invalid_amount",
			requestBody: `{"item_id":"item1","amount":"-10"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("-10")).
					Return(model.PlaceBidResult{}, fmt.Errorf("service: %w", biddingerrors.ErrInvalidAmount))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid amount",
		},
		{
			name:        "service_bid_too_low",
			requestBody: `{"item_id":"item1","amount":"50"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("50")).
					Return(model.PlaceBidResult{}, biddingerrors.ErrBidTooLow)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid amount too low",
		},
		{
			name:        "service_insufficient_balance",
			requestBody: `{"item_id":"item1","amount":"5000"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("5000")).
					Return(model.PlaceBidResult{}, biddingerrors.ErrInsufficientBalance)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedMsg:    "insufficient wallet balance",
		},
		{
			name:        "service_self_bid",
			requestBody: `{"item_id":"item1","amount":"150"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("150")).
					Return(model.PlaceBidResult{}, biddingerrors.ErrSelfBid)
			},
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "sellers cannot bid on their own auction",
		},
		{
			name:        "service_item_not_found",
			requestBody: `{"item_id":"item1","amount":"150"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("150")).
					Return(model.PlaceBidResult{}, fmt.Errorf("get item item1: %w", biddingerrors.ErrItemNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "item not found",
		},
		{
			name:        "service_generic_error",
			requestBody: `{"item_id":"item1","amount":"100"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), "item1", "user1", amountOf("100")).
					Return(model.PlaceBidResult{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			status, resp := serve(t, router, http.MethodPost, "/bids", tc.requestBody)

			require.Equal(t, tc.expectedStatus, status)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil && status == http.StatusCreated {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

func TestRecordBidHandler_Unauthenticated(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewBiddingHandler(NewMockBiddingServiceInterface(ctrl))
	router := newTestRouter("")
	router.POST("/bids", handler.RecordBidHandler)

	status, resp := serve(t, router, http.MethodPost, "/bids", `{"item_id":"item1","amount":"10"}`)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "unauthorized", resp["message"])
}

// Test WithdrawBidHandler
func TestWithdrawBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("user1")
	router.POST("/bids/:bid_id/withdraw", handler.WithdrawBidHandler)

	withdrawnAt := time.Now().UTC()

	tests := []struct {
		name           string
		bidID          string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:  "success",
			bidID: "bid1",
			mockSetup: func() {
				mockService.EXPECT().WithdrawBid(gomock.Any(), "bid1", "user1").Return(model.WithdrawBidResult{
					Bid:            model.Bid{BidID: "bid1", ItemID: "item1", UserID: "user1", Amount: decimal.NewFromInt(150), Withdrawn: true, WithdrawnAt: &withdrawnAt},
					RefundedAmount: decimal.NewFromInt(150),
					CurrentPrice:   decimal.NewFromInt(170),
					Balance:        decimal.NewFromInt(500),
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bid withdrawn successfully",
		},
		{
			name:  "leading_bid",
			bidID: "bid2",
			mockSetup: func() {
				mockService.EXPECT().WithdrawBid(gomock.Any(), "bid2", "user1").Return(model.WithdrawBidResult{}, biddingerrors.ErrNotWithdrawable)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid cannot be withdrawn",
		},
		{
			name:  "unknown_bid",
			bidID: "bid3",
			mockSetup: func() {
				mockService.EXPECT().WithdrawBid(gomock.Any(), "bid3", "user1").Return(model.WithdrawBidResult{}, biddingerrors.ErrBidNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "bid not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			status, resp := serve(t, router, http.MethodPost, fmt.Sprintf("/bids/%s/withdraw", tc.bidID), nil)
			require.Equal(t, tc.expectedStatus, status)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if status == http.StatusOK {
				data := resp["data"].(map[string]any)
				require.Equal(t, "150", data["refunded_amount"])
				require.Equal(t, "170", data["current_price"])
				require.Equal(t, true, data["bid"].(map[string]any)["withdrawn"])
			}
		})
	}
}

// Test GetBidsByItemHandler
func TestGetBidsByItemHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("")
	router.GET("/items/:item_id/bids", handler.GetBidsByItemHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		itemID         string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedLen    int
	}{
		{
			name:   "success_multiple_bids",
			itemID: "item1",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForItem(gomock.Any(), "item1").
					Return([]model.Bid{
						{BidID: uuid.NewString(), ItemID: "item1", UserID: "user1", Amount: decimal.NewFromInt(100), CreatedAt: now},
						{BidID: uuid.NewString(), ItemID: "item1", UserID: "user2", Amount: decimal.NewFromInt(150), CreatedAt: now},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			expectedLen:    2,
		},
		{
			name:   "service_no_bids_error",
			itemID: "item3",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForItem(gomock.Any(), "item3").
					Return(nil, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			expectedLen:    0,
		},
		{
			name:   "unknown_item",
			itemID: "item4",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForItem(gomock.Any(), "item4").
					Return(nil, biddingerrors.ErrItemNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "item not found",
		},
		{
			name:   "service_generic_error",
			itemID: "item5",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForItem(gomock.Any(), "item5").
					Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			status, resp := serve(t, router, http.MethodGet, fmt.Sprintf("/items/%s/bids", tc.itemID), nil)
			require.Equal(t, tc.expectedStatus, status)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if status == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedLen)
				require.Equal(t, float64(tc.expectedLen), resp["count"])
			}
			if status == http.StatusInternalServerError {
				require.Equal(t, "internal server error", resp["error"])
			}
		})
	}
}

// Test WinningBidHandler
func TestGetWinningBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("")
	router.GET("/items/:item_id/winning", handler.GetWinningBidHandler)

	tests := []struct {
		name           string
		itemID         string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:   "success",
			itemID: "item1",
			mockSetup: func() {
				mockService.EXPECT().GetWinningBid(gomock.Any(), "item1").
					Return(model.Bid{BidID: "bid1", ItemID: "item1", UserID: "user2", Amount: decimal.NewFromInt(170)}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "winning bid retrieved successfully",
		},
		{
			name:   "no_bids",
			itemID: "item2",
			mockSetup: func() {
				mockService.EXPECT().GetWinningBid(gomock.Any(), "item2").Return(model.Bid{}, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "no winning bid found",
		},
		{
			name:   "unknown_item",
			itemID: "item3",
			mockSetup: func() {
				mockService.EXPECT().GetWinningBid(gomock.Any(), "item3").Return(model.Bid{}, biddingerrors.ErrItemNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "item not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			status, resp := serve(t, router, http.MethodGet, fmt.Sprintf("/items/%s/winning", tc.itemID), nil)
			require.Equal(t, tc.expectedStatus, status)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if status == http.StatusOK {
				data := resp["data"].(map[string]any)
				require.Equal(t, "user2", data["user_id"])
				require.Equal(t, "170", data["amount"])
			}
		})
	}
}

// Test GetItemsByUserHandler
func TestGetItemsByUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("")
	router.GET("/users/:user_id/items", handler.GetItemsByUserHandler)

	mockService.EXPECT().GetItemsByUser(gomock.Any(), "user1").Return([]model.AuctionItem{
		{ItemID: "item1", Title: "Lamp", Status: model.StatusActive},
	}, nil)
	status, resp := serve(t, router, http.MethodGet, "/users/user1/items", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["data"].([]any), 1)

	mockService.EXPECT().GetItemsByUser(gomock.Any(), "user2").Return(nil, biddingerrors.ErrUserNoBids)
	status, resp = serve(t, router, http.MethodGet, "/users/user2/items", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp["data"].([]any))
}

func TestGetItemsBySellerHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("")
	router.GET("/users/:user_id/selling", handler.GetItemsBySellerHandler)

	mockService.EXPECT().GetItemsBySeller(gomock.Any(), "seller1").Return([]model.AuctionItem{
		{ItemID: "item1", SellerID: "seller1", Status: model.StatusActive},
		{ItemID: "item2", SellerID: "seller1", Status: model.StatusClosed, WinnerID: "user1"},
	}, nil)
	status, resp := serve(t, router, http.MethodGet, "/users/seller1/selling", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "listed items retrieved successfully", resp["message"])
	require.Equal(t, float64(2), resp["count"])
	second := resp["data"].([]any)[1].(map[string]any)
	require.Equal(t, "closed", second["status"])
	require.Equal(t, "user1", second["winner_id"])

	mockService.EXPECT().GetItemsBySeller(gomock.Any(), "seller2").Return(nil, nil)
	status, resp = serve(t, router, http.MethodGet, "/users/seller2/selling", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp["data"].([]any))
	require.Equal(t, float64(0), resp["count"])

	mockService.EXPECT().GetItemsBySeller(gomock.Any(), "seller3").Return(nil, errors.New("connection refused"))
	status, resp = serve(t, router, http.MethodGet, "/users/seller3/selling", nil)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "internal server error", resp["error"])
}

func TestGetWonItemsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter("")
	router.GET("/users/:user_id/won", handler.GetWonItemsHandler)

	mockService.EXPECT().GetWonItems(gomock.Any(), "user1").Return([]model.AuctionItem{
		{ItemID: "item1", Status: model.StatusClosed, WinnerID: "user1", CurrentPrice: decimal.RequireFromString("170")},
	}, nil)
	status, resp := serve(t, router, http.MethodGet, "/users/user1/won", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "won items retrieved successfully", resp["message"])
	require.Equal(t, float64(1), resp["count"])
	won := resp["data"].([]any)[0].(map[string]any)
	require.Equal(t, "item1", won["item_id"])
	require.Equal(t, "170", won["current_price"])

	mockService.EXPECT().GetWonItems(gomock.Any(), "user2").Return([]model.AuctionItem{}, nil)
	status, resp = serve(t, router, http.MethodGet, "/users/user2/won", nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, resp["data"].([]any))
}
