// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"mesafacil-billing/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware resolves the calling tenant from the platform-issued
// access token. This service does not mint tokens; it only verifies the
// shared-secret signature and reads the tenant claim.
type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

type tenantClaims struct {
	TenantID int64 `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and sets tenant_id on the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims := &tenantClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.secret, nil
		})
		if err != nil || !parsed.Valid {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		tenantID := claims.TenantID
		if tenantID == 0 && claims.Subject != "" {
			// Older tokens carry the tenant only in the subject.
			tenantID, _ = strconv.ParseInt(claims.Subject, 10, 64)
		}
		if tenantID == 0 {
			response.Error(c, http.StatusUnauthorized, "token carries no tenant", nil)
			return
		}

		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}

// GetTenantID gets the tenant ID from context.
func GetTenantID(c *gin.Context) (int64, bool) {
	tenantID, exists := c.Get("tenant_id")
	if !exists {
		return 0, false
	}

	id, ok := tenantID.(int64)
	return id, ok
}
