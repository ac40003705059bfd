package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// BotAPI provides a direct Telegram Bot API client used for payment reports.
type BotAPI struct {
	token  string
	client *resty.Client
}

// NewBotAPI creates a new direct Telegram Bot API client.
func NewBotAPI(token string) *BotAPI {
	return &BotAPI{
		token:  token,
		client: resty.New().SetBaseURL("https://api.telegram.org/bot" + token),
	}
}

// WithBaseURL points the client at another API host, e.g. a local Bot API server.
func (b *BotAPI) WithBaseURL(url string) *BotAPI {
	b.client.SetBaseURL(url)
	return b
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Call makes a raw API call to the Telegram Bot API.
func (b *BotAPI) Call(ctx context.Context, method string, params map[string]interface{}) (string, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(params).
		Post("/" + method)
	if err != nil {
		return "", fmt.Errorf("telegram API call %s failed: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return resp.String(), fmt.Errorf("telegram API call %s: unreadable reply: %w", method, err)
	}
	if !parsed.OK {
		return resp.String(), fmt.Errorf("telegram API call %s: %s", method, parsed.Description)
	}
	return resp.String(), nil
}

// SendMessage sends an HTML formatted text message.
func (b *BotAPI) SendMessage(ctx context.Context, chatID string, text string) (string, error) {
	return b.Call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}
