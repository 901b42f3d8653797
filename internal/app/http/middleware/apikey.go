package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/cache"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	HeaderPublicKey = "X-Public-Key"

	publicKeyTTL = 30 * time.Second
)

func PublicKeyCacheKey(pk string) string {
	return "tenant:pk:" + pk
}

// RequirePublicKey resolves the storefront tenant from its publishable key.
// When the tenant lists allowed origins, browser requests from other origins
// are refused.
func RequirePublicKey(db *gorm.DB, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		pk := strings.TrimSpace(ctx.GetHeader(HeaderPublicKey))
		if pk == "" {
			pk = ctx.Query("key")
		}
		if pk == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Public key missing"})
			return
		}

		t, err := cache.Fetch(ctx.Request.Context(), c, PublicKeyCacheKey(pk), publicKeyTTL,
			func(rc context.Context) (*tenants.Tenant, error) {
				return tenants.FindByPublicKey(rc, db, pk)
			})
		if err != nil {
			abortKeyError(ctx, err)
			return
		}
		if t.Status != tenants.StatusActive {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Storefront unavailable"})
			return
		}
		if origin := ctx.GetHeader("Origin"); origin != "" && len(t.AllowedOrigins) > 0 && !originAllowed(t.AllowedOrigins, origin) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Origin not allowed"})
			return
		}

		ctx.Set(CtxTenantID, t.ID)
		ctx.Set(CtxTenant, t)
		ctx.Next()
	}
}

// RequireSecretKey authenticates server-to-server calls made with a tenant's
// secret key in the Authorization header.
func RequireSecretKey(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		sk := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if sk == "" || !strings.HasPrefix(sk, "sk_") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Secret key missing"})
			return
		}
		t, err := tenants.FindBySecretKey(ctx.Request.Context(), db, sk)
		if err != nil {
			abortKeyError(ctx, err)
			return
		}
		if t.Status != tenants.StatusActive {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Tenant suspended"})
			return
		}
		ctx.Set(CtxTenantID, t.ID)
		ctx.Set(CtxTenant, t)
		ctx.Next()
	}
}

func abortKeyError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, tenants.ErrInvalidKeyFormat), errors.Is(err, tenants.ErrTenantNotFound):
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
	default:
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve tenant"})
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}

// TenantFrom returns the tenant placed on the context by the key or tenant
// middlewares.
func TenantFrom(c *gin.Context) *tenants.Tenant {
	v, ok := c.Get(CtxTenant)
	if !ok {
		return nil
	}
	t, _ := v.(*tenants.Tenant)
	return t
}
