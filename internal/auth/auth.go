package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is the gin context key holding the authenticated account id
const ContextKey = "accountID"

// TokenTTL is the lifetime of tokens issued by GenerateJWT
const TokenTTL = 24 * time.Hour

// Auth verifies bearer tokens issued by the identity collaborator
type Auth struct {
	secretKey []byte
}

// NewAuth creates an Auth for HS256 tokens signed with secretKey
func NewAuth(secretKey string) (*Auth, error) {
	if secretKey == "" {
		return nil, errors.New("JWT secret key cannot be empty")
	}
	return &Auth{secretKey: []byte(secretKey)}, nil
}

// GenerateJWT issues a token whose subject is accountID
func (a *Auth) GenerateJWT(accountID string) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject under ContextKey
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, "authorization header is missing")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abort(c, "invalid authorization header format")
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secretKey, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			abort(c, "invalid or expired token")
			return
		}

		c.Set(ContextKey, claims.Subject)
		c.Next()
	}
}

// AccountID returns the authenticated account id set by Middleware
func AccountID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextKey)
	return id, id != ""
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  http.StatusUnauthorized,
		"message": message,
		"error":   "unauthorized",
	})
}
