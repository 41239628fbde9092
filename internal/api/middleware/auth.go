package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader is accepted as an alternative to "Authorization: Bearer <key>"
const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware authenticates requests against the bcrypt hash of the admin API key.
// An empty hash disables the guarded routes entirely.
func AdminKeyMiddleware(keyHash string, logger *zap.Logger) gin.HandlerFunc {
	keyHash = strings.TrimSpace(keyHash)
	return func(c *gin.Context) {
		if keyHash == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			c.Abort()
			return
		}

		apiKey, ok := extractAPIKey(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		if !VerifyAPIKey(apiKey, keyHash) {
			logger.Warn("Rejected admin request", zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func extractAPIKey(c *gin.Context) (string, bool) {
	if key := strings.TrimSpace(c.GetHeader(AdminKeyHeader)); key != "" {
		return key, true
	}

	// Extract Bearer token
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	apiKey := strings.TrimSpace(parts[1])
	return apiKey, apiKey != ""
}

// HashAPIKey hashes an API key using bcrypt
func HashAPIKey(apiKey string) (string, error) {
	// Use a cost of 10 for API keys (faster than passwords)
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAPIKey verifies an API key against a hash
func VerifyAPIKey(apiKey, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey))
	return err == nil
}
