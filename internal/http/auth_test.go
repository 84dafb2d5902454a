package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/store"
)

func setupAuthServer(t *testing.T) *Server {
	t.Helper()

	eng := newTestEngine(t, store.NewMemStore())
	server, err := NewServer(eng, zap.NewNop(), &Config{
		Host:      "localhost",
		Port:      9090,
		AuthToken: "sesame",
		Version:   "test",
	})
	require.NoError(t, err)
	return server
}

func authedGet(server *Server, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestBearerAuth(t *testing.T) {
	server := setupAuthServer(t)

	t.Run("missing header is rejected", func(t *testing.T) {
		rec := authedGet(server, "/api/v1/stats", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong scheme is rejected", func(t *testing.T) {
		rec := authedGet(server, "/api/v1/stats", "Basic sesame")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		rec := authedGet(server, "/api/v1/stats", "Bearer sesam")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token passes", func(t *testing.T) {
		rec := authedGet(server, "/api/v1/stats", "Bearer sesame")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		rec := authedGet(server, "/health", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics stay open", func(t *testing.T) {
		rec := authedGet(server, "/metrics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBearerAuth_DisabledByDefault(t *testing.T) {
	server := setupTestServer(t)

	rec := authedGet(server, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
