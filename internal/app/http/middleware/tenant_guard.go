package middleware

import (
	"errors"
	"net/http"

	"booking-app/internal/domain/access"
	"booking-app/internal/domain/tenants"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LoadTenant resolves the tenant named in the session token. Platform admins
// carry no tenant and are refused here.
func LoadTenant(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString(CtxTenantID)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "No tenant on this account"})
			return
		}
		t, err := tenants.Get(c.Request.Context(), db, tenantID)
		if err != nil {
			if errors.Is(err, tenants.ErrTenantNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Tenant not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tenant"})
			return
		}
		c.Set(CtxTenant, t)
		c.Next()
	}
}

// RequireCapability checks the tenant's access policy.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := TenantFrom(c)
		if t == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Tenant not resolved"})
			return
		}
		policy := access.ComputePolicy(t)
		if !policy.Can(capability) {
			status := http.StatusForbidden
			if policy.State == access.AccessSetup {
				// payments not connected yet
				status = http.StatusPaymentRequired
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "Not available for this tenant", "state": policy.State})
			return
		}
		c.Next()
	}
}
