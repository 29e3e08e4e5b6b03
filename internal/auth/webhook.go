package auth

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// PaymentSignatureHeader carries the gateway's HMAC-SHA256 of the raw callback body,
// base64url encoded without padding
const PaymentSignatureHeader = "X-Payment-Signature"

// SignatureValidKey is the gin context key holding the outcome of the callback signature check
const SignatureValidKey = "paymentSignatureValid"

// WebhookVerifier checks callbacks signed by the payment gateway with a shared secret
type WebhookVerifier struct {
	secretKey []byte
}

// NewWebhookVerifier creates a WebhookVerifier for secretKey
func NewWebhookVerifier(secretKey string) (*WebhookVerifier, error) {
	if secretKey == "" {
		return nil, errors.New("payment webhook secret cannot be empty")
	}
	return &WebhookVerifier{secretKey: []byte(secretKey)}, nil
}

// Sign returns the header value the gateway sends for body
func (v *WebhookVerifier) Sign(body []byte) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(string(body), v.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify reports whether signature is the gateway's signature of body
func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return jwt.SigningMethodHS256.Verify(string(body), sig, v.secretKey) == nil
}

// SignatureValid returns the result stored by the payment signature middleware.
// A request that never passed through it is not valid.
func SignatureValid(c *gin.Context) bool {
	return c.GetBool(SignatureValidKey)
}
