package middleware

import (
	"math"
	"net/http"
	"strconv"

	"booking-app/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the identity a bucket is counted against.
type KeyFunc func(c *gin.Context) string

func ByClientIP(c *gin.Context) string { return c.ClientIP() }

// ByTenantAndIP keys storefront traffic per tenant so one busy storefront
// cannot starve another.
func ByTenantAndIP(c *gin.Context) string {
	return c.GetString(CtxTenantID) + ":" + c.ClientIP()
}

func RateLimit(l ratelimit.Limiter, bucket string, rule ratelimit.Rule, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := l.Allow(c.Request.Context(), bucket+":"+key(c), rule)
		if err != nil {
			// limiter backend down: let the request through
			_ = c.Error(err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
