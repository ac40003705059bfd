package router

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"ipgconnect/internal/dedup"
	"ipgconnect/internal/handler"
	"ipgconnect/internal/models"
	"ipgconnect/internal/notification"
)

type emptyReader struct{}

func (emptyReader) FindAll(int, int, string) ([]models.CallbackRecord, int64, error) {
	return nil, 0, nil
}

func (emptyReader) FindLatestByOrderID(string) (*models.CallbackRecord, error) {
	return nil, nil
}

func newServer() *echo.Echo {
	e := echo.New()
	callbacks := handler.NewIPGCallbackHandler(
		notification.Credentials{StoreID: "S1", SharedSecret: "SECRET"},
		notification.Options{},
		handler.CallbackDeps{Deduper: dedup.NewMemory(time.Minute)},
		zap.NewNop(),
	)
	Setup(e, callbacks, emptyReader{}, zap.NewNop(), "k3y")
	return e
}

func TestRoutes(t *testing.T) {
	e := newServer()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		status int
	}{
		{"health", http.MethodGet, "/health", "", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"api without token", http.MethodPost, "/api/callbacks", `{"actions":"callbacks"}`, "", http.StatusUnauthorized},
		{"api with token", http.MethodPost, "/api/callbacks", `{"actions":"callbacks"}`, "k3y", http.StatusOK},
		{"unsigned notification", http.MethodPost, "/ipg/notification", url.Values{"oid": {"ORD-1"}}.Encode(), "", http.StatusForbidden},
		{"notification via GET", http.MethodGet, "/ipg/notification", "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if strings.HasPrefix(tt.path, "/api") {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			} else if tt.body != "" {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
			}
			if tt.token != "" {
				req.Header.Set("Token", tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestResponseRoute_AcceptsGet(t *testing.T) {
	e := newServer()
	q := url.Values{
		notification.FieldApprovalCode: {"A1"},
		notification.FieldChargeTotal:  {"10.00"},
		notification.FieldCurrency:     {"840"},
		notification.FieldTxnDateTime:  {"2024:01:01-00:00:00"},
		notification.FieldStatus:       {"APPROVED"},
		notification.FieldOrderID:      {"ORD-1"},
		notification.FieldResponseHash: {"05a580ba2e67b5c50d1d2d5028043a8b053dd40d7216f52790383459fe1425f8"},
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ipg/response?"+q.Encode(), nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Payment successful")
}
