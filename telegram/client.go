// Package telegram is a small Bot API client covering the calls the bot makes.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultAPIBase = "https://api.telegram.org"

// APIError is a Bot API reply with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, e.Description)
}

type apiResp struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sendMessagePayload struct {
	ChatID    string    `json:"chat_id"`
	Text      string    `json:"text"`
	ParseMode ParseMode `json:"parse_mode,omitempty"`
}

type sendPhotoPayload struct {
	ChatID    string    `json:"chat_id"`
	Photo     string    `json:"photo"`
	Caption   string    `json:"caption,omitempty"`
	ParseMode ParseMode `json:"parse_mode,omitempty"`
}

type setWebhookPayload struct {
	URL            string   `json:"url"`
	SecretToken    string   `json:"secret_token,omitempty"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// Client talks to the Bot API over HTTPS with JSON bodies.
type Client struct {
	token   string
	apiBase string
	client  *http.Client
}

// New creates a Client. apiBase may be empty for the public endpoint.
func New(token, apiBase string, client *http.Client) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{token: token, apiBase: strings.TrimRight(apiBase, "/"), client: client}, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID, text string, mode ParseMode) error {
	return c.call(ctx, "sendMessage", sendMessagePayload{ChatID: chatID, Text: text, ParseMode: mode})
}

// SendPhoto posts an image by URL with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string, mode ParseMode) error {
	return c.call(ctx, "sendPhoto", sendPhotoPayload{ChatID: chatID, Photo: photoURL, Caption: caption, ParseMode: mode})
}

// SetWebhook registers hookURL as the update endpoint. Telegram echoes secret back in the
// X-Telegram-Bot-Api-Secret-Token header of every delivery.
func (c *Client) SetWebhook(ctx context.Context, hookURL, secret string) error {
	return c.call(ctx, "setWebhook", setWebhookPayload{URL: hookURL, SecretToken: secret, AllowedUpdates: []string{"message"}})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the token; report only the method and the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var data apiResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("telegram %s: decoding response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if !data.OK {
		return &APIError{Method: method, Code: data.ErrorCode, Description: data.Description}
	}
	return nil
}
