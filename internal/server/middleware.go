package server

import (
	"auction-escrow/internal/auth"
	"auction-escrow/utils"
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing and the caller when known
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if route := c.FullPath(); route != "" {
		fields["route"] = route
	}
	if id, ok := auth.AccountID(c); ok {
		fields["account_id"] = id
	}
	if len(c.Errors) > 0 {
		fields["errors"] = c.Errors.String()
	}

	switch status := c.Writer.Status(); {
	case status >= 500:
		utils.Error("HTTP Request", fields)
	case status >= 400:
		utils.Warn("HTTP Request", fields)
	default:
		utils.Info("HTTP Request", fields)
	}
}

// maxCallbackBody bounds how much of a gateway callback is read for signature checking
const maxCallbackBody = 1 << 20

// PaymentSignatureMiddleware checks the gateway signature over the raw request body and
// records the outcome under auth.SignatureValidKey. The body is restored for binding.
func PaymentSignatureMiddleware(verifier *auth.WebhookVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody+1))
		if err != nil || len(body) > maxCallbackBody {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status":  http.StatusBadRequest,
				"message": "invalid request payload",
				"error":   "callback body unreadable or too large",
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		valid := verifier.Verify(body, c.GetHeader(auth.PaymentSignatureHeader))
		if !valid {
			utils.Warn("payment callback signature rejected", map[string]any{
				"remote_addr": c.ClientIP(),
				"path":        c.Request.URL.Path,
			})
		}
		c.Set(auth.SignatureValidKey, valid)
		c.Next()
	}
}
