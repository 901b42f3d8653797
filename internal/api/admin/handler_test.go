package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"booking-app/internal/app/http/middleware"
	"booking-app/internal/infra/cache"
	"booking-app/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tenantID = "7b0c3a52-2a4e-4c59-9d5a-0d3f0c1e9a10"

func setup(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *cache.Memory) {
	gin.SetMode(gin.TestMode)
	db, mock := testutil.NewMockDB(t)
	mem := cache.NewMemory(0)
	t.Cleanup(mem.Close)

	h := NewHandler(db, mem, zap.NewNop())
	r := gin.New()
	r.GET("/tenants", h.ListTenants)
	r.PATCH("/tenants/:id/status", h.SetStatus)
	r.PATCH("/tenants/:id/commission", h.SetCommission)
	return r, mock, mem
}

func send(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestSetStatus_SuspendDropsCachedKey(t *testing.T) {
	r, mock, mem := setup(t)
	ctx := context.Background()
	key := middleware.PublicKeyCacheKey("pk_test_spa_1")
	require.NoError(t, mem.Set(ctx, key, []byte(`{}`), time.Minute))

	mock.ExpectExec(`UPDATE "tenants" SET "status"=\$1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "tenants" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "public_key"}).AddRow(tenantID, "pk_test_spa_1"))

	w := send(r, http.MethodPatch, "/tenants/"+tenantID+"/status", `{"status":"SUSPENDED"}`)

	require.Equal(t, http.StatusOK, w.Code)
	_, err := mem.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	r, _, _ := setup(t)
	w := send(r, http.MethodPatch, "/tenants/"+tenantID+"/status", `{"status":"DELETED"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetCommission_OutOfRange(t *testing.T) {
	r, _, _ := setup(t)
	w := send(r, http.MethodPatch, "/tenants/"+tenantID+"/commission", `{"commission_percent":"120"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTenants(t *testing.T) {
	r, mock, _ := setup(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "status"}).AddRow(tenantID, "spa", "ACTIVE"))

	w := send(r, http.MethodGet, "/tenants", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slug":"spa"`)
	assert.Contains(t, w.Body.String(), `"total":1`)
}
