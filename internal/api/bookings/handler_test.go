package bookings

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"booking-app/internal/app/http/middleware"
	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tenantID = "7b0c3a52-2a4e-4c59-9d5a-0d3f0c1e9a10"

func newRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	gin.SetMode(gin.TestMode)
	db, mock := testutil.NewMockDB(t)
	h := NewHandler(db, booking.NewService(db, nil, zap.NewNop()), zap.NewNop())

	tenant := &tenants.Tenant{ID: tenantID, Slug: "spa", Timezone: "UTC", Currency: "usd"}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxTenantID, tenantID)
		c.Set(middleware.CtxTenant, tenant)
		c.Next()
	})
	r.GET("/bookings", h.List)
	r.GET("/bookings/export", h.Export)
	r.GET("/bookings/:id", h.Get)
	r.POST("/bookings", h.Create)
	return r, mock
}

func TestList_ReturnsItemsAndTotal(t *testing.T) {
	r, mock := newRouter(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "bookings" WHERE tenant_id = \$1 AND status = \$2`).
		WithArgs(tenantID, "CONFIRMED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE tenant_id = \$1 AND status = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("b1", "CONFIRMED"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings?status=CONFIRMED", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
	assert.Contains(t, w.Body.String(), `"id":"b1"`)
}

func TestGet_NotFound(t *testing.T) {
	r, mock := newRouter(t)

	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE id = \$1 AND tenant_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreate_RejectsPaidStatuses(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings",
		strings.NewReader(`{"kind":"DATE","item_id":"t1","date":"2026-12-01","status":"CANCELED"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate_TimeslotNeedsStart(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings",
		strings.NewReader(`{"kind":"TIMESLOT","item_id":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "start is required")
}

func TestExport_ServesWorkbook(t *testing.T) {
	r, mock := newRouter(t)

	mock.ExpectQuery(`SELECT \* FROM "bookings" WHERE tenant_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "status", "date"}).
			AddRow("b1", "DATE", "CONFIRMED", "2026-12-01"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bookings/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bookings-spa-")
	// xlsx files are zip archives
	assert.Equal(t, "PK", w.Body.String()[:2])
}
