package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	api := NewBotAPI("token").WithBaseURL(srv.URL)
	_, err := api.SendMessage(context.Background(), "-100123", "<b>hi</b>")
	require.NoError(t, err)

	assert.Equal(t, "/sendMessage", gotPath)
	assert.Equal(t, "-100123", gotBody["chat_id"])
	assert.Equal(t, "<b>hi</b>", gotBody["text"])
	assert.Equal(t, "HTML", gotBody["parse_mode"])
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	api := NewBotAPI("token").WithBaseURL(srv.URL)
	_, err := api.SendMessage(context.Background(), "nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
