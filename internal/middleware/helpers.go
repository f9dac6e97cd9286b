// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// MustGetTenantID gets the tenant ID from context or panics. Only valid on
// routes behind Auth().
func MustGetTenantID(c *gin.Context) int64 {
	tenantID, exists := GetTenantID(c)
	if !exists {
		panic("tenant_id not found in context")
	}
	return tenantID
}

// IsAuthenticated checks if the request carries a resolved tenant.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("tenant_id")
	return exists
}
