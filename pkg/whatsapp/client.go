package whatsapp

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

	"github.com/kiranahq/kirana-backend/pkg/config"
)

var (
	errBaseURLRequired = errors.New("whatsapp api base url is required")
	errPhoneIDRequired = errors.New("whatsapp phone id is required")
	errTokenRequired   = errors.New("whatsapp access token is required")
)

// Client talks to the WhatsApp Cloud API messages endpoint.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	phoneID     string
	accessToken string
}

// Message is one outbound text message.
type Message struct {
	To   string
	Body string
}

// NewClient validates the Cloud API credentials and returns a sender.
func NewClient(cfg config.WhatsAppConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	phoneID := strings.TrimSpace(cfg.PhoneID)
	if phoneID == "" {
		return nil, errPhoneIDRequired
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errTokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		phoneID:     phoneID,
		accessToken: token,
	}, nil
}

// Send posts a single text message. Non-2xx responses surface as errors so
// the outbox publisher can retry.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return fmt.Errorf("message body is required")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.To,
		"type":              "text",
		"text":              map[string]any{"body": msg.Body},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
