package reports

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestExportEndpointsUnavailableWithoutStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil, zap.NewNop())

	router := gin.New()
	router.POST("/admin/reports/export", h.Export)
	router.GET("/admin/reports/export/:id", h.ExportStatus)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/reports/export", strings.NewReader(`{"kind":"users"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/reports/export/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
