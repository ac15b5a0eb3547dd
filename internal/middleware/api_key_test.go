package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serveWithKey(key string, setup func(r *http.Request)) int {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, APIKeyAuth(key))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		setup func(r *http.Request)
		want  int
	}{
		{"disabled", "", nil, http.StatusNoContent},
		{"missing", "k1", nil, http.StatusUnauthorized},
		{"wrong", "k1", func(r *http.Request) { r.Header.Set(APIKeyHeader, "nope") }, http.StatusUnauthorized},
		{"header", "k1", func(r *http.Request) { r.Header.Set(APIKeyHeader, "k1") }, http.StatusNoContent},
		{"query", "k1", func(r *http.Request) { r.URL.RawQuery = "api_key=k1" }, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serveWithKey(tt.key, tt.setup))
		})
	}
}
