package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ipgconnect/internal/models"
)

type fakeReader struct {
	records   []models.CallbackRecord
	lastLimit int
	lastPage  int
	lastQuery string
	err       error
}

func (r *fakeReader) FindAll(limit, page int, query string) ([]models.CallbackRecord, int64, error) {
	r.lastLimit, r.lastPage, r.lastQuery = limit, page, query
	if r.err != nil {
		return nil, 0, r.err
	}
	return r.records, int64(len(r.records)), nil
}

func (r *fakeReader) FindLatestByOrderID(orderID string) (*models.CallbackRecord, error) {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].OrderID == orderID {
			return &r.records[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type apiReply struct {
	Status bool            `json:"status"`
	Msg    string          `json:"msg"`
	Obj    json.RawMessage `json:"obj"`
}

func call(t *testing.T, h *CallbackHandler, method, target, body string) apiReply {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)

	var reply apiReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	return reply
}

func TestCallbackHandler_List(t *testing.T) {
	reader := &fakeReader{records: []models.CallbackRecord{
		{ID: 1, OrderID: "ORD-1", Status: "completed"},
		{ID: 2, OrderID: "ORD-2", Status: "pending"},
	}}
	h := NewCallbackHandler(reader, zap.NewNop())

	reply := call(t, h, http.MethodPost, "/api/callbacks", `{"actions":"callbacks","limit":5000,"page":0,"q":"ORD"}`)

	assert.True(t, reply.Status)
	assert.Equal(t, 1000, reader.lastLimit)
	assert.Equal(t, 1, reader.lastPage)
	assert.Equal(t, "ORD", reader.lastQuery)

	var page models.PaginatedResponse
	require.NoError(t, json.Unmarshal(reply.Obj, &page))
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 1, page.TotalPages)
}

func TestCallbackHandler_ListFromQuery(t *testing.T) {
	reader := &fakeReader{}
	h := NewCallbackHandler(reader, zap.NewNop())

	reply := call(t, h, http.MethodGet, "/api/callbacks?actions=callbacks&limit=10&page=3", "")

	assert.True(t, reply.Status)
	assert.Equal(t, 10, reader.lastLimit)
	assert.Equal(t, 3, reader.lastPage)
}

func TestCallbackHandler_ListError(t *testing.T) {
	h := NewCallbackHandler(&fakeReader{err: errors.New("db down")}, zap.NewNop())

	reply := call(t, h, http.MethodPost, "/api/callbacks", `{"actions":"callbacks"}`)

	assert.False(t, reply.Status)
	assert.Equal(t, "Failed to retrieve callbacks", reply.Msg)
}

func TestCallbackHandler_Get(t *testing.T) {
	reader := &fakeReader{records: []models.CallbackRecord{
		{ID: 1, OrderID: "ORD-1", Status: "pending"},
		{ID: 2, OrderID: "ORD-1", Status: "completed"},
	}}
	h := NewCallbackHandler(reader, zap.NewNop())

	reply := call(t, h, http.MethodPost, "/api/callbacks", `{"actions":"callback","oid":"ORD-1"}`)
	require.True(t, reply.Status)

	var record models.CallbackRecord
	require.NoError(t, json.Unmarshal(reply.Obj, &record))
	assert.Equal(t, uint(2), record.ID)
	assert.Equal(t, "completed", record.Status)
}

func TestCallbackHandler_GetErrors(t *testing.T) {
	h := NewCallbackHandler(&fakeReader{}, zap.NewNop())

	tests := []struct {
		body string
		msg  string
	}{
		{`{"actions":"callback"}`, "oid is required"},
		{`{"actions":"callback","oid":"missing"}`, "Callback not found"},
		{`{"actions":"refund"}`, "Unknown action: refund"},
	}
	for _, tt := range tests {
		reply := call(t, h, http.MethodPost, "/api/callbacks", tt.body)
		assert.False(t, reply.Status)
		assert.Equal(t, tt.msg, reply.Msg)
	}
}
