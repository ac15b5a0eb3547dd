package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const SignatureHeader = "X-Blaster-Signature"

type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Webhook posts blast events to a configured URL. A zero URL disables it.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
	Log    zerolog.Logger
}

func NewWebhook(url, secret string, log zerolog.Logger) *Webhook {
	return &Webhook{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: 5 * time.Second},
		Log:    log,
	}
}

func (w *Webhook) Enabled() bool { return w != nil && w.URL != "" }

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Send posts one event and waits for the response.
func (w *Webhook) Send(ctx context.Context, event string, data interface{}) error {
	if !w.Enabled() {
		return nil
	}

	body, err := json.Marshal(WebhookPayload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.Secret, body))
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s responded %d", w.URL, resp.StatusCode)
	}
	w.Log.Debug().Str("event", event).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}
