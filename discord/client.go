package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://discord.com/api/v10"

// Sentinel errors mapping the Discord failure modes the handlers care about.
// Anything else surfaces as a wrapped *APIError.
var (
	ErrNotFound  = errors.New("discord: not found")
	ErrForbidden = errors.New("discord: forbidden")
)

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api %s %s: %d %s", e.Method, e.Path, e.Status, e.Body)
}

// Unwrap maps the status code onto the sentinel errors so callers can use
// errors.Is without inspecting codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	}
	return nil
}

// Client talks to the Discord REST API, both as a bot (channel messages,
// scheduled events) and through a channel webhook (summary post/edit/delete).
type Client struct {
	httpClient *http.Client
	apiBase    string
	botToken   string
	webhookURL string
}

// NewClient builds a client. webhookURL is the full channel webhook URL used
// for summary messages; botToken authorizes the bot-scoped endpoints.
func NewClient(botToken, webhookURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiBase:    defaultAPIBase,
		botToken:   botToken,
		webhookURL: strings.TrimSuffix(webhookURL, "/"),
	}
}

// SetAPIBase overrides the API base URL. Used by tests.
func (c *Client) SetAPIBase(base string) { c.apiBase = strings.TrimSuffix(base, "/") }

// SetWebhookURL overrides the webhook URL. Used by tests.
func (c *Client) SetWebhookURL(url string) { c.webhookURL = strings.TrimSuffix(url, "/") }

// do sends one request and returns the response body, translating non-2xx
// statuses into *APIError.
func (c *Client) do(ctx context.Context, method, url string, payload any, authorize bool) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorize {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 400 {
		return nil, &APIError{Method: method, Path: req.URL.Path, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// ExecuteWebhook posts a message through the channel webhook and returns the
// ID of the created message (the webhook is executed with wait=true so the
// API returns the message body instead of 204).
func (c *Client) ExecuteWebhook(ctx context.Context, msg WebhookMessage) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.webhookURL+"?wait=true", msg, false)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode webhook response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("webhook response missing message id")
	}
	return created.ID, nil
}

// EditWebhookMessage replaces the content of a previously posted webhook
// message in place.
func (c *Client) EditWebhookMessage(ctx context.Context, messageID string, msg WebhookMessage) error {
	_, err := c.do(ctx, http.MethodPatch, c.webhookURL+"/messages/"+messageID, msg, false)
	return err
}

// DeleteWebhookMessage deletes a previously posted webhook message.
func (c *Client) DeleteWebhookMessage(ctx context.Context, messageID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.webhookURL+"/messages/"+messageID, nil, false)
	return err
}

// SendChannelMessage posts a plain message to a channel as the bot and
// returns the message ID.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, content string) (string, error) {
	if len(content) > 2000 {
		content = content[:1997] + "..."
	}
	body, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID),
		map[string]string{"content": content}, true)
	if err != nil {
		return "", err
	}
	var msg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("decode message response: %w", err)
	}
	return msg.ID, nil
}

// CreateScheduledEvent creates a scheduled event in the guild.
func (c *Client) CreateScheduledEvent(ctx context.Context, guildID string, ev ScheduledEvent) error {
	_, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("%s/guilds/%s/scheduled-events", c.apiBase, guildID), ev, true)
	return err
}
