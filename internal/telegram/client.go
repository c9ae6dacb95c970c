package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Client sends outbound messages through the Bot API. Sends are single-shot:
// callers decide whether a failure matters, the client never retries.
type Client struct {
	http     *resty.Client
	sendPath string
}

// NewClient creates a Bot API client. baseURL overrides the public endpoint,
// which tests use to point at a local server; pass "" for the default.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &Client{
		http:     c,
		sendPath: "/bot" + token + "/sendMessage",
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers an HTML-formatted message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	reqBody := sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	var respBody sendMessageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&reqBody).
		SetResult(&respBody).
		SetError(&respBody).
		Post(c.sendPath)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if resp.IsError() || !respBody.OK {
		return fmt.Errorf("send message: bot api status %d: %s", resp.StatusCode(), respBody.Description)
	}
	return nil
}
