package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"booking-app/config"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/infra/cache"
	"booking-app/internal/infra/ratelimit"
	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tenantID = "7b0c3a52-2a4e-4c59-9d5a-0d3f0c1e9a10"

func init() {
	gin.SetMode(gin.TestMode)
}

func echoIdentity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":   c.GetString(CtxUserID),
		"role":      c.GetString(CtxRole),
		"tenant_id": c.GetString(CtxTenantID),
	})
}

func TestAuthMiddleware_RoundTrip(t *testing.T) {
	config.JWT_SECRET = "test-secret"

	tok, err := IssueToken(Identity{UserID: "u1", Email: "o@studio.test", Role: "owner", TenantID: tenantID})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", AuthMiddleware(), echoIdentity)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1","role":"owner","tenant_id":"`+tenantID+`"}`, w.Body.String())
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	config.JWT_SECRET = "test-secret"

	r := gin.New()
	r.GET("/me", AuthMiddleware(), echoIdentity)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"garbage":   "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		c.Set(CtxRole, c.Query("role"))
		c.Next()
	}, RequireRole("platform_admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?role=owner", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?role=platform_admin", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit_Returns429WithRetryAfter(t *testing.T) {
	lim := ratelimit.NewMemory(0)
	defer lim.Close()

	r := gin.New()
	r.GET("/x", RateLimit(lim, "test", ratelimit.Rule{Limit: 2, Window: time.Minute}, ByClientIP),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}

func TestSanitize_StripsNestedMarkup(t *testing.T) {
	var got map[string]interface{}
	r := gin.New()
	r.POST("/x", SanitizeAndCleanInputMiddleware(), func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&got))
		c.Status(http.StatusOK)
	})

	body := `{"name":"<b>Ana</b>","customer":{"notes":"<script>x</script>hi"},"tags":["<i>a</i>"],"qty":2}`
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ana", got["name"])
	assert.Equal(t, "hi", got["customer"].(map[string]interface{})["notes"])
	assert.Equal(t, []interface{}{"a"}, got["tags"])
	assert.EqualValues(t, 2, got["qty"])
}

func TestSanitize_RejectsMalformedJSON(t *testing.T) {
	r := gin.New()
	r.POST("/x", SanitizeAndCleanInputMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func tenantRows(status string, origins string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "slug", "status", "public_key", "allowed_origins"}).
		AddRow(tenantID, "studio", status, "pk_test_studio_0011223344556677", origins)
}

func storefrontRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	db, mock := testutil.NewMockDB(t)
	mem := cache.NewMemory(0)
	t.Cleanup(mem.Close)

	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/catalog", RequirePublicKey(db, mem), func(c *gin.Context) {
		c.String(http.StatusOK, TenantFrom(c).Slug)
	})
	return r, mock
}

func TestRequirePublicKey_ResolvesAndCaches(t *testing.T) {
	r, mock := storefrontRouter(t)
	mock.ExpectQuery(`SELECT \* FROM "tenants" WHERE public_key = \$1`).
		WillReturnRows(tenantRows(tenants.StatusActive, "{}"))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
		req.Header.Set(HeaderPublicKey, "pk_test_studio_0011223344556677")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "studio", w.Body.String())
		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequirePublicKey_Origin(t *testing.T) {
	r, mock := storefrontRouter(t)
	mock.ExpectQuery(`SELECT \* FROM "tenants"`).
		WillReturnRows(tenantRows(tenants.StatusActive, "{https://studio.example}"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog?key=pk_test_studio_0011223344556677", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePublicKey_Suspended(t *testing.T) {
	r, mock := storefrontRouter(t)
	mock.ExpectQuery(`SELECT \* FROM "tenants"`).
		WillReturnRows(tenantRows(tenants.StatusSuspended, "{}"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set(HeaderPublicKey, "pk_test_studio_0011223344556677")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePublicKey_BadFormat(t *testing.T) {
	r, _ := storefrontRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set(HeaderPublicKey, "not-a-key")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireCapability(t *testing.T) {
	acct := "acct_1"
	cases := map[string]struct {
		tenant *tenants.Tenant
		want   int
	}{
		"live":      {&tenants.Tenant{Status: tenants.StatusActive, StripeAccountID: &acct, ChargesEnabled: true}, http.StatusOK},
		"setup":     {&tenants.Tenant{Status: tenants.StatusActive}, http.StatusPaymentRequired},
		"suspended": {&tenants.Tenant{Status: tenants.StatusSuspended}, http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.POST("/checkout", func(c *gin.Context) {
				c.Set(CtxTenant, tc.tenant)
				c.Next()
			}, RequireCapability("checkout"), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
