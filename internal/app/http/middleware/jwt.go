package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"booking-app/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserID   = "user_id"
	CtxEmail    = "email"
	CtxRole     = "role"
	CtxTenantID = "tenant_id"
	CtxTenant   = "tenant"
)

const TokenTTL = 24 * time.Hour

type Identity struct {
	UserID   string
	Email    string
	Role     string
	TenantID string
}

// IssueToken signs a session token for a dashboard user.
func IssueToken(id Identity) (string, error) {
	jwtKey := []byte(config.JWT_SECRET)
	if len(jwtKey) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}
	claims := jwt.MapClaims{
		"user_id": id.UserID,
		"email":   id.Email,
		"role":    id.Role,
		"exp":     time.Now().Add(TokenTTL).Unix(),
	}
	if id.TenantID != "" {
		claims["tenant_id"] = id.TenantID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey)
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		jwtKey := []byte(config.JWT_SECRET)
		if len(jwtKey) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtKey, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		c.Set(CtxUserID, userID)
		if email, ok := claims["email"].(string); ok {
			c.Set(CtxEmail, email)
		}
		if role, ok := claims["role"].(string); ok {
			c.Set(CtxRole, role)
		}
		if tenantID, ok := claims["tenant_id"].(string); ok {
			c.Set(CtxTenantID, tenantID)
		}
		c.Next()
	}
}

// RequireRole lets the request through when the token role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(CtxRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			return
		}
		for _, r := range roles {
			if value == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
	}
}
