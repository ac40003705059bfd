package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(mw echo.MiddlewareFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	e.Use(mw)
	e.Any("/*", okHandler)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIAuth(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		token  string
		status int
	}{
		{"valid token", "k3y", "k3y", http.StatusOK},
		{"missing token", "k3y", "", http.StatusUnauthorized},
		{"wrong token", "k3y", "nope", http.StatusUnauthorized},
		{"empty key locks api", "", "anything", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/callbacks", nil)
			if tt.token != "" {
				req.Header.Set("Token", tt.token)
			}
			rec := serve(APIAuth(tt.key), req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequestLogger_GeneratesID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	rec := serve(RequestLogger(zap.New(core)), httptest.NewRequest(http.MethodGet, "/health", nil))

	id := rec.Header().Get(HeaderRequestID)
	assert.Len(t, id, 36)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, "/health", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestRequestLogger_KeepsIncomingID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(HeaderRequestID, "abc-123")

	e := echo.New()
	e.Use(RequestLogger(zap.New(core)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
	entries := logs.FilterMessage("Request processed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestCORS_Preflight(t *testing.T) {
	rec := serve(CORS(), httptest.NewRequest(http.MethodOptions, "/api/callbacks", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}
