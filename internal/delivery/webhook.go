package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrDenied      = errors.New("delivery denied")
	ErrRateLimited = errors.New("delivery rate limited")
	ErrUnavailable = errors.New("delivery unavailable")
)

// Deliverer pushes content into a channel through its delivery handle, and
// sends best-effort direct notices to users.
type Deliverer interface {
	// Deliver posts text and attachments through the handle under the given
	// display name. Returns ErrDenied, ErrRateLimited or ErrUnavailable.
	Deliver(ctx context.Context, handle, text string, attachments []string, displayName string) error

	// NotifyUser sends a direct message. Best-effort: callers ignore errors.
	NotifyUser(ctx context.Context, userID, text string) error

	// PostToChannel posts plain text into a channel by ID, used for
	// logs-channel notices.
	PostToChannel(ctx context.Context, channelID, text string) error
}

// WebhookDeliverer treats the delivery handle as a webhook URL on the chat
// platform. Direct notices go through the platform API with the bot token.
type WebhookDeliverer struct {
	httpClient *http.Client
	apiBase    string
	botToken   string
}

func NewWebhookDeliverer(apiBase, botToken string, timeout time.Duration) *WebhookDeliverer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDeliverer{
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    apiBase,
		botToken:   botToken,
	}
}

type webhookPayload struct {
	Content     string   `json:"content"`
	Username    string   `json:"username,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	// Relayed marks the post as system-relayed content. The platform echoes
	// it back on inbound events, which is what keeps overlapping groups from
	// re-ingesting our own deliveries.
	Relayed bool `json:"relayed"`
}

func (d *WebhookDeliverer) Deliver(ctx context.Context, handle, text string, attachments []string, displayName string) error {
	// Display names on the platform cap at 32 characters.
	if len(displayName) > 32 {
		displayName = displayName[:32]
	}
	payload := webhookPayload{
		Content:     text,
		Username:    displayName,
		Attachments: attachments,
		Relayed:     true,
	}
	return d.post(ctx, handle, payload)
}

type noticePayload struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

func (d *WebhookDeliverer) NotifyUser(ctx context.Context, userID, text string) error {
	body, err := json.Marshal(noticePayload{UserID: userID, Content: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+"/users/notices", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.botToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

type channelMessage struct {
	Content string `json:"content"`
}

func (d *WebhookDeliverer) PostToChannel(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(channelMessage{Content: text})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/channels/%s/messages", d.apiBase, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.botToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

func (d *WebhookDeliverer) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		// 404 covers revoked webhooks.
		return fmt.Errorf("%w: status %d", ErrDenied, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, status)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
}
